package conv

import "fmt"

// ToolSpec is the form of a tool presented to a model backend.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolKindTag tags the variant of a CanonicalToolName.
type ToolKindTag int

const (
	ToolKindBuiltIn ToolKindTag = iota
	ToolKindMcp
	ToolKindAgent
)

// CanonicalToolName is the storage-form identifier of a tool, independent
// of aliasing and catalog sanitization. Its textual form is: bare for
// built-ins, "@server/tool" for external tool-server tools, "#name" for
// sub-agents.
type CanonicalToolName struct {
	Kind   ToolKindTag
	Name   string // BuiltIn name, or Agent name
	Server string // Mcp only
	Tool   string // Mcp only
}

// BuiltIn constructs a built-in canonical tool name.
func BuiltIn(name string) CanonicalToolName { return CanonicalToolName{Kind: ToolKindBuiltIn, Name: name} }

// Mcp constructs an external tool-server canonical tool name.
func Mcp(server, tool string) CanonicalToolName {
	return CanonicalToolName{Kind: ToolKindMcp, Server: server, Tool: tool}
}

// Agent constructs a sub-agent canonical tool name.
func Agent(name string) CanonicalToolName { return CanonicalToolName{Kind: ToolKindAgent, Name: name} }

// FullName renders the canonical textual form used as a storage key.
func (c CanonicalToolName) FullName() string {
	switch c.Kind {
	case ToolKindMcp:
		return fmt.Sprintf("@%s/%s", c.Server, c.Tool)
	case ToolKindAgent:
		return "#" + c.Name
	default:
		return c.Name
	}
}

// SanitizationNote records why a spec was transformed or rejected during
// catalog sanitization.
type SanitizationNote struct {
	Canonical string
	Reason    string // "OutOfSpecName", "EmptyName", "NameTooLong", "EmptyDescription", "NameCollision", "DescriptionTooLong"
	Detail    string // extra context, e.g. the winning canonical name on a collision
}

// CatalogEntry is one admitted tool in a SanitizedCatalog.
type CatalogEntry struct {
	Canonical CanonicalToolName
	Spec      ToolSpec
}

// SanitizedCatalog is the mapping from presented name to catalog entry,
// produced once per turn by the tool-spec sanitizer. Presented names are
// unique and match ^[A-Za-z][A-Za-z0-9_-]{0,63}$; every retained spec has a
// non-empty description.
type SanitizedCatalog struct {
	Entries  map[string]CatalogEntry
	Filtered []SanitizationNote
	Warned   []SanitizationNote
}

// NewSanitizedCatalog returns an empty catalog ready to be populated.
func NewSanitizedCatalog() *SanitizedCatalog {
	return &SanitizedCatalog{Entries: make(map[string]CatalogEntry)}
}

// ToolSpecs returns the presented tool specs in map-iteration order; callers
// that need deterministic ordering should sort by presented name.
func (c *SanitizedCatalog) ToolSpecs() []ToolSpec {
	out := make([]ToolSpec, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.Spec)
	}
	return out
}

// Resolve looks up the canonical name behind a presented name.
func (c *SanitizedCatalog) Resolve(presented string) (CanonicalToolName, bool) {
	e, ok := c.Entries[presented]
	return e.Canonical, ok
}

// PathPolicy is a pair of glob pattern lists governing path-based tools.
type PathPolicy struct {
	AllowedPaths []string
	DeniedPaths  []string
}

// ToolSettings groups per-tool-kind path policies.
type ToolSettings struct {
	FsRead  PathPolicy
	FsWrite PathPolicy
}

// AllowedTools is a set of tool-name reference patterns: exact names,
// globs, "@server", "@server/glob", "#name", or "*".
type AllowedTools []string
