// Package agentconfig loads and saves the persisted per-agent
// configuration file (section 6 of the runtime contract): the agent's
// name, prompt, tool patterns, path policy, aliases, and resource URIs.
package agentconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

// Config is the on-disk shape of one agent's configuration.
type Config struct {
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description,omitempty"`
	Prompt       string              `yaml:"prompt,omitempty"`
	Tools        []string            `yaml:"tools"`
	AllowedTools []string            `yaml:"allowed_tools"`
	ToolSettings ToolSettingsConfig  `yaml:"tool_settings"`
	ToolAliases  map[string]string   `yaml:"tool_aliases,omitempty"`
	Resources    []string            `yaml:"resources,omitempty"`
}

// ToolSettingsConfig mirrors conv.ToolSettings in its on-disk YAML form.
type ToolSettingsConfig struct {
	FsRead  PathPolicyConfig `yaml:"fs_read"`
	FsWrite PathPolicyConfig `yaml:"fs_write"`
}

// PathPolicyConfig mirrors conv.PathPolicy in its on-disk YAML form.
type PathPolicyConfig struct {
	AllowedPaths []string `yaml:"allowed_paths,omitempty"`
	DeniedPaths  []string `yaml:"denied_paths,omitempty"`
}

// Load reads and parses an agent config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes an agent config file, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create agent config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ToToolSettings converts the on-disk representation to the conv form the
// permission evaluator consumes.
func (c *Config) ToToolSettings() conv.ToolSettings {
	return conv.ToolSettings{
		FsRead:  conv.PathPolicy{AllowedPaths: c.ToolSettings.FsRead.AllowedPaths, DeniedPaths: c.ToolSettings.FsRead.DeniedPaths},
		FsWrite: conv.PathPolicy{AllowedPaths: c.ToolSettings.FsWrite.AllowedPaths, DeniedPaths: c.ToolSettings.FsWrite.DeniedPaths},
	}
}

// AllowedToolSet converts the on-disk allowed_tools list to conv.AllowedTools.
func (c *Config) AllowedToolSet() conv.AllowedTools {
	return conv.AllowedTools(c.AllowedTools)
}

// ResolveResources expands resources entries (file:// URIs only) into
// canonicalized filesystem paths, performing glob expansion wherever an
// entry contains a glob character.
func ResolveResources(sys pathutil.System, resources []string) ([]string, error) {
	var out []string
	for _, r := range resources {
		raw := strings.TrimPrefix(r, "file://")
		if raw == r {
			return nil, fmt.Errorf("unsupported resource URI scheme: %s", r)
		}
		resolved, err := pathutil.Canonicalize(sys, raw)
		if err != nil {
			return nil, fmt.Errorf("resolve resource %s: %w", r, err)
		}
		if strings.ContainsAny(raw, "*?[") {
			matches, err := filepath.Glob(resolved)
			if err != nil {
				return nil, fmt.Errorf("expand resource glob %s: %w", r, err)
			}
			out = append(out, matches...)
			continue
		}
		out = append(out, resolved)
	}
	return out, nil
}
