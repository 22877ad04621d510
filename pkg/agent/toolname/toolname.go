// Package toolname parses textual tool-name references (as written in
// policy expressions and agent configs) into a classified reference, and
// implements the pattern-matching rules used by the permission evaluator.
package toolname

import (
	"strings"

	"github.com/gobwas/glob"
)

// RefKind tags the variant of a parsed tool-name Reference.
type RefKind int

const (
	All         RefKind = iota // "*"
	AllBuiltIn                 // "@builtin"
	McpServer                  // "@server"
	McpGlob                    // "@server/foo*"
	McpFullName                // "@server/tool"
	AgentGlob                  // "#*name"
	Agent                      // "#name"
	BuiltInGlob                 // contains "*", no prefix
	BuiltIn                     // anything else
)

// Reference is a classified tool-name reference.
type Reference struct {
	Kind   RefKind
	Server string // McpServer, McpGlob, McpFullName
	Tool   string // McpGlob, McpFullName (may contain '*' for McpGlob)
	Name   string // AllBuiltIn literal, AgentGlob/Agent, BuiltInGlob/BuiltIn
}

// Parse classifies a textual tool-name reference. Prefix tests are applied
// in order: "*", then "@...", then "#...", then bare/glob built-in.
func Parse(ref string) Reference {
	switch {
	case ref == "*":
		return Reference{Kind: All}
	case ref == "@builtin":
		return Reference{Kind: AllBuiltIn, Name: ref}
	case strings.HasPrefix(ref, "@"):
		rest := ref[1:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			server, tool := rest[:slash], rest[slash+1:]
			if strings.Contains(tool, "*") {
				return Reference{Kind: McpGlob, Server: server, Tool: tool}
			}
			return Reference{Kind: McpFullName, Server: server, Tool: tool}
		}
		return Reference{Kind: McpServer, Server: rest}
	case strings.HasPrefix(ref, "#"):
		name := ref[1:]
		if strings.Contains(name, "*") {
			return Reference{Kind: AgentGlob, Name: name}
		}
		return Reference{Kind: Agent, Name: name}
	default:
		if strings.Contains(ref, "*") {
			return Reference{Kind: BuiltInGlob, Name: ref}
		}
		return Reference{Kind: BuiltIn, Name: ref}
	}
}

// MatchesAny reports whether text exactly equals, or glob-matches, any of
// patterns. A pattern is treated as a glob only if it contains '*' or '?';
// otherwise only an exact match counts. Invalid glob patterns never match.
func MatchesAny(patterns []string, text string) bool {
	for _, pattern := range patterns {
		if pattern == text {
			return true
		}
		if strings.ContainsAny(pattern, "*?") {
			if g, err := glob.Compile(pattern); err == nil && g.Match(text) {
				return true
			}
		}
	}
	return false
}

// FindMatches returns the subset of items that glob-match pattern. Invalid
// glob patterns yield no matches.
func FindMatches(pattern string, items []string) []string {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		if g.Match(item) {
			out = append(out, item)
		}
	}
	return out
}
