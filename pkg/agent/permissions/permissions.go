// Package permissions implements the pure policy-evaluation function that
// decides, for a single tool invocation, whether to auto-allow, auto-deny
// with a reason, or require user approval.
package permissions

import (
	"strings"

	"github.com/gobwas/glob"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
	"agentrun/pkg/agent/toolname"
)

// Decision is the outcome of evaluating a tool invocation against policy.
type Decision int

const (
	Allow Decision = iota
	Ask
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Ask:
		return "ask"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Result is the full evaluation outcome; Reason is populated only for Deny.
type Result struct {
	Decision Decision
	Reason   string
}

// InvocationKind tags the built-in tool kinds that require path-aware
// evaluation versus those that are always Allow.
type InvocationKind int

const (
	KindFileRead InvocationKind = iota
	KindFileWrite
	KindLs
	KindImageRead
	KindGrep
	KindMkdir
	KindExecuteCmd
	KindIntrospect
	KindSpawnSubagent
	KindMcp
)

// Invocation describes one tool call to be evaluated.
type Invocation struct {
	Kind      InvocationKind
	ToolName  conv.CanonicalToolName
	Paths     []string // relevant only for path-aware kinds
}

// Evaluate is the pure decision function: (invocation, allowed_tools,
// settings, filesystem view) -> Allow | Ask | Deny{reason}.
func Evaluate(sys pathutil.System, inv Invocation, allowedTools conv.AllowedTools, settings conv.ToolSettings) Result {
	isAllowed := toolname.MatchesAny(allowedTools, inv.ToolName.FullName())

	switch inv.Kind {
	case KindFileRead:
		return evaluateForPaths(sys, settings.FsRead, inv.Paths, isAllowed)
	case KindFileWrite:
		return evaluateForPaths(sys, settings.FsWrite, inv.Paths, isAllowed)
	case KindLs:
		// Matches the original's policy re-use: directory listing is
		// evaluated against the fs_write path lists.
		return evaluateForPaths(sys, settings.FsWrite, inv.Paths, isAllowed)
	case KindImageRead:
		return evaluateForPaths(sys, settings.FsWrite, inv.Paths, isAllowed)
	case KindGrep, KindMkdir, KindExecuteCmd, KindIntrospect, KindSpawnSubagent:
		return Result{Decision: Allow}
	case KindMcp:
		if isAllowed {
			return Result{Decision: Allow}
		}
		return Result{Decision: Ask}
	default:
		return Result{Decision: Ask}
	}
}

func evaluateForPaths(sys pathutil.System, policy conv.PathPolicy, paths []string, isAllowed bool) Result {
	allowedCanon := canonicalizeAll(sys, policy.AllowedPaths)
	deniedCanon := canonicalizeAll(sys, policy.DeniedPaths)

	// A policy entry that does not compile as a glob degrades to Ask.
	for _, p := range append(append([]string{}, allowedCanon...), deniedCanon...) {
		if _, err := glob.Compile(p, '/'); err != nil {
			return Result{Decision: Ask}
		}
	}

	needsAsk := false
	for _, p := range paths {
		resolved, err := pathutil.Canonicalize(sys, p)
		if err != nil {
			// Cannot resolve the path at all: fail safe to Ask.
			needsAsk = true
			continue
		}

		switch checkPath(resolved, allowedCanon, deniedCanon) {
		case pathDenied:
			reasons := matchingPatterns(resolved, deniedCanon)
			return Result{Decision: Deny, Reason: strings.Join(reasons, ", ")}
		case pathAsk:
			needsAsk = true
		}
	}

	if needsAsk && !isAllowed {
		return Result{Decision: Ask}
	}
	return Result{Decision: Allow}
}

type pathCheck int

const (
	pathAllow pathCheck = iota
	pathAsk
	pathDenied
)

// globEntry pairs a compiled glob with the original policy string it was
// built from, for reporting back which entry matched.
type globEntry struct {
	pattern string
	g       glob.Glob
}

func canonicalizeAll(sys pathutil.System, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := pathutil.Canonicalize(sys, p)
		if err != nil {
			continue
		}
		out = append(out, resolved)
	}
	return out
}

// buildGlobSet expands each policy path into both the bare pattern and
// "pattern/**" so a directory entry matches its own contents too. A "/**/"
// inside a pattern also matches zero directories ("a/**/b" matches "a/b").
// Patterns that fail to compile are skipped here; evaluateForPaths has
// already answered Ask for such a policy.
func buildGlobSet(paths []string) []globEntry {
	var out []globEntry
	for _, p := range paths {
		variants := []string{p}
		if strings.Contains(p, "/**/") {
			variants = append(variants, strings.ReplaceAll(p, "/**/", "/"))
		}
		for _, v := range variants {
			if g, err := glob.Compile(v, '/'); err == nil {
				out = append(out, globEntry{pattern: p, g: g})
			}
			dirPattern := strings.TrimSuffix(v, "/") + "/**"
			if g, err := glob.Compile(dirPattern, '/'); err == nil {
				out = append(out, globEntry{pattern: p, g: g})
			}
		}
	}
	return out
}

func checkPath(path string, allowed, denied []string) pathCheck {
	denySet := buildGlobSet(denied)
	for _, e := range denySet {
		if e.g.Match(path) {
			return pathDenied
		}
	}
	allowSet := buildGlobSet(allowed)
	for _, e := range allowSet {
		if e.g.Match(path) {
			return pathAllow
		}
	}
	return pathAsk
}

func matchingPatterns(path string, denied []string) []string {
	var out []string
	for _, e := range buildGlobSet(denied) {
		if e.g.Match(path) {
			out = append(out, e.pattern)
		}
	}
	return out
}
