package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestImageReadRejectsUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	sys := fakeToolSys{home: dir, cwd: dir}
	r := ImageRead{Sys: sys}
	input, _ := json.Marshal(imageReadInput{Paths: []string{path}})
	if _, err := r.Execute(context.Background(), input); err == nil {
		t.Fatal("expected error for unsupported image type")
	}
}

func TestImageReadRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	big := make([]byte, maxImageSizeBytes+1)
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}
	sys := fakeToolSys{home: dir, cwd: dir}
	r := ImageRead{Sys: sys}
	input, _ := json.Marshal(imageReadInput{Paths: []string{path}})
	if _, err := r.Execute(context.Background(), input); err == nil {
		t.Fatal("expected error for oversized image")
	}
}

func TestImageReadReturnsImageItem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}
	sys := fakeToolSys{home: dir, cwd: dir}
	r := ImageRead{Sys: sys}
	input, _ := json.Marshal(imageReadInput{Paths: []string{path}})
	out, err := r.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].MediaType != "image/png" {
		t.Fatalf("unexpected items: %+v", out.Items)
	}
}
