// Package catalog implements the tool-spec sanitizer: it turns a
// heterogeneous set of tool descriptors (built-ins, external tool-server
// tools) into a validated, non-colliding catalog presented to the model,
// preserving a canonical<->presented name mapping.
package catalog

import (
	"regexp"

	"agentrun/pkg/agent/conv"
)

const (
	maxToolNameLen        = 64
	maxToolSpecDescLen    = 10004
	toolUsePurposeName    = "__tool_use_purpose"
	toolUsePurposeDesc    = "A brief explanation why you are making this tool use."
)

var validToolNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,64}$`)

// BuiltInRegistry resolves a built-in tool's static spec by name.
type BuiltInRegistry interface {
	Spec(name string) (conv.ToolSpec, bool)
}

// Sanitize builds a SanitizedCatalog for one turn.
//
// canonicalNames is the set of tools the agent is configured to expose.
// mcpToolSpecs maps an external server name to the raw specs it
// advertises. aliases maps a full canonical name to a presented-name
// override. Iteration over MCP servers is server-name ascending and, within
// a server, in the server's advertised order, so that repeated calls with
// identical inputs produce an identical catalog, including collision
// winners (first-writer-wins).
func Sanitize(
	builtins BuiltInRegistry,
	canonicalNames []conv.CanonicalToolName,
	mcpToolSpecs map[string][]conv.ToolSpec,
	aliases map[string]string,
) *conv.SanitizedCatalog {
	cat := conv.NewSanitizedCatalog()

	mcpRequested := make(map[string]map[string]bool)
	var serverOrder []string
	seenServer := make(map[string]bool)

	for _, name := range canonicalNames {
		switch name.Kind {
		case conv.ToolKindBuiltIn:
			if spec, ok := builtins.Spec(name.Name); ok {
				cat.Entries[name.Name] = conv.CatalogEntry{Canonical: name, Spec: spec}
			}
		case conv.ToolKindMcp:
			if mcpRequested[name.Server] == nil {
				mcpRequested[name.Server] = make(map[string]bool)
			}
			mcpRequested[name.Server][name.Tool] = true
			if !seenServer[name.Server] {
				seenServer[name.Server] = true
				serverOrder = append(serverOrder, name.Server)
			}
		case conv.ToolKindAgent:
			// Sub-agent tool-spec generation is not yet part of this
			// runtime; canonical agent names are tracked but contribute
			// no catalog entry.
		}
	}
	sortStrings(serverOrder)

	for _, server := range serverOrder {
		specs, ok := mcpToolSpecs[server]
		if !ok {
			continue
		}
		requested := mcpRequested[server]
		for _, spec := range specs {
			if !requested[spec.Name] {
				continue
			}
			sanitizeMcpSpec(cat, server, spec, aliases)
		}
	}

	return cat
}

func sanitizeMcpSpec(cat *conv.SanitizedCatalog, server string, spec conv.ToolSpec, aliases map[string]string) {
	canonical := conv.Mcp(server, spec.Name)
	fullName := canonical.FullName()

	name := spec.Name
	if alias, ok := aliases[fullName]; ok {
		name = alias
	}

	isRegexMismatch := false
	sanitized := name
	if !validToolNameRe.MatchString(name) {
		isRegexMismatch = true
		sanitized = stripDisallowed(name)
	}

	if sanitized == "" {
		cat.Filtered = append(cat.Filtered, conv.SanitizationNote{Canonical: fullName, Reason: "EmptyName"})
		return
	}
	if !isAsciiAlpha(sanitized[0]) {
		sanitized = "a" + sanitized
	}

	switch {
	case len(sanitized) > maxToolNameLen:
		cat.Filtered = append(cat.Filtered, conv.SanitizationNote{Canonical: fullName, Reason: "NameTooLong"})
	case spec.Description == "":
		cat.Filtered = append(cat.Filtered, conv.SanitizationNote{Canonical: fullName, Reason: "EmptyDescription"})
	default:
		if existing, collides := cat.Entries[sanitized]; collides {
			cat.Filtered = append(cat.Filtered, conv.SanitizationNote{
				Canonical: fullName,
				Reason:    "NameCollision",
				Detail:    existing.Canonical.FullName(),
			})
			return
		}

		desc := spec.Description
		if len(desc) > maxToolSpecDescLen {
			cat.Warned = append(cat.Warned, conv.SanitizationNote{Canonical: fullName, Reason: "DescriptionTooLong"})
			desc = desc[:maxToolSpecDescLen]
		}
		if isRegexMismatch {
			cat.Warned = append(cat.Warned, conv.SanitizationNote{Canonical: fullName, Reason: "OutOfSpecName", Detail: sanitized})
		}

		out := spec
		out.Name = sanitized
		out.Description = desc
		cat.Entries[sanitized] = conv.CatalogEntry{Canonical: canonical, Spec: out}
	}
}

func stripDisallowed(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAsciiAlpha(c) || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			out = append(out, c)
		}
	}
	return string(out)
}

func isAsciiAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// AddToolUsePurposeArg injects the __tool_use_purpose schema property into
// every admitted spec whose input schema declares type:"object" with a
// properties object, unless already present.
func AddToolUsePurposeArg(specs []conv.ToolSpec) {
	for i := range specs {
		schema := specs[i].InputSchema
		if schema == nil {
			continue
		}
		if t, _ := schema["type"].(string); t != "object" {
			continue
		}
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			continue
		}
		if _, exists := props[toolUsePurposeName]; exists {
			continue
		}
		props[toolUsePurposeName] = map[string]any{
			"type":        "string",
			"description": toolUsePurposeDesc,
		}
	}
}
