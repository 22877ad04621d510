package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLsListsEntriesWithTrailingSlashOnDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sys := fakeToolSys{home: dir, cwd: dir}
	l := Ls{Sys: sys}
	input, _ := json.Marshal(lsInput{Path: dir})
	out, err := l.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	text := out.Items[0].Text
	if !strings.Contains(text, "sub/") {
		t.Errorf("expected sub/ in output, got %q", text)
	}
	if !strings.Contains(text, "file.txt") || strings.Contains(text, "file.txt/") {
		t.Errorf("expected file.txt without trailing slash, got %q", text)
	}
}

func TestLsValidateRejectsEmptyPath(t *testing.T) {
	l := Ls{}
	input, _ := json.Marshal(lsInput{Path: ""})
	if err := l.Validate(input); err == nil {
		t.Fatal("expected error for empty path")
	}
}
