package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriteCreatesParentsAndContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.txt")
	sys := fakeToolSys{home: dir, cwd: dir}
	w := FileWrite{Sys: sys}
	input, _ := json.Marshal(fileWriteInput{Path: target, Content: "hello"})
	if err := w.Validate(input); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := w.Execute(context.Background(), input); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestFileWriteValidateRejectsEmptyPath(t *testing.T) {
	w := FileWrite{}
	input, _ := json.Marshal(fileWriteInput{Path: "", Content: "x"})
	if err := w.Validate(input); err == nil {
		t.Fatal("expected error for empty path")
	}
}
