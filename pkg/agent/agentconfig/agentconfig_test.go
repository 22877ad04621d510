package agentconfig

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents", "researcher.yaml")

	cfg := &Config{
		Name:         "researcher",
		Description:  "reads papers",
		Tools:        []string{"fs_read", "grep"},
		AllowedTools: []string{"fs_read", "grep"},
		ToolSettings: ToolSettingsConfig{
			FsRead: PathPolicyConfig{AllowedPaths: []string{"~/papers"}},
		},
		ToolAliases: map[string]string{"@scholar/search": "search"},
		Resources:   []string{"file://~/papers/*.pdf"},
	}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != cfg.Name || got.Description != cfg.Description {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
	if len(got.Tools) != 2 || got.ToolAliases["@scholar/search"] != "search" {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/agent.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
