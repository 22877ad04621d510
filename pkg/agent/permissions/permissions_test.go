package permissions

import (
	"strings"
	"testing"

	"agentrun/pkg/agent/conv"
	"agentrun/pkg/agent/pathutil"
)

func TestCheckPath(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		allowed []string
		denied  []string
		want    pathCheck
	}{
		{"allowed dir prefix", "src/main.rs", []string{"src"}, nil, pathAllow},
		{"allowed recursive glob", "tests/test_file", []string{"tests/**"}, nil, pathAllow},
		{"denied glob star", "denied_dir/sub_path", nil, []string{"denied_dir/**/*"}, pathDenied},
		{"denied exact dir wins over allow", "denied_dir/sub_path", []string{"denied_dir"}, []string{"denied_dir"}, pathDenied},
		{"deny takes priority over nested allow", "denied_dir/allowed/hi", []string{"denied_dir/allowed"}, []string{"denied_dir"}, pathDenied},
		{"multiple deny patterns", "denied_dir/key_id_ecdsa", nil, []string{"denied_dir", "*id_ecdsa*"}, pathDenied},
		{"bare dir does not match tail-only glob", "denied_dir", nil, []string{"denied_dir/**/*"}, pathAsk},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := checkPath(tc.path, tc.allowed, tc.denied)
			if got != tc.want {
				t.Errorf("checkPath(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

type fakeSys struct {
	home string
	cwd  string
}

func (f fakeSys) Env(string) (string, bool) { return "", false }
func (f fakeSys) Home() (string, bool)      { return f.home, f.home != "" }
func (f fakeSys) Cwd() (string, error)      { return f.cwd, nil }

func TestEvaluateMonotoneInDeniedList(t *testing.T) {
	sys := fakeSys{cwd: "/work"}
	inv := Invocation{Kind: KindFileRead, Paths: []string{"/work/src/main.go"}}
	settings := conv.ToolSettings{FsRead: conv.PathPolicy{AllowedPaths: []string{"/work/src"}}}

	before := Evaluate(sys, inv, nil, settings)
	if before.Decision != Allow {
		t.Fatalf("expected Allow before adding deny rule, got %v", before.Decision)
	}

	settings.FsRead.DeniedPaths = []string{"/work/src"}
	after := Evaluate(sys, inv, nil, settings)
	if after.Decision != Deny {
		t.Fatalf("adding a denied pattern must not move Allow to something other than Deny, got %v", after.Decision)
	}
}

func TestEvaluateDeniedPathReasonIncludesPattern(t *testing.T) {
	sys := fakeSys{cwd: "/work"}
	inv := Invocation{Kind: KindFileRead, Paths: []string{"/tmp/secret"}}
	settings := conv.ToolSettings{FsRead: conv.PathPolicy{DeniedPaths: []string{"/tmp"}}}

	res := Evaluate(sys, inv, nil, settings)
	if res.Decision != Deny {
		t.Fatalf("expected Deny, got %v", res.Decision)
	}
	if !strings.Contains(res.Reason, "/tmp") {
		t.Fatalf("expected reason to include the denied pattern /tmp, got %q", res.Reason)
	}
}

func TestEvaluateAlwaysAllowKinds(t *testing.T) {
	sys := fakeSys{cwd: "/work"}
	for _, kind := range []InvocationKind{KindGrep, KindMkdir, KindExecuteCmd, KindIntrospect, KindSpawnSubagent} {
		res := Evaluate(sys, Invocation{Kind: kind}, nil, conv.ToolSettings{})
		if res.Decision != Allow {
			t.Errorf("kind %v: expected Allow, got %v", kind, res.Decision)
		}
	}
}

func TestEvaluateMcp(t *testing.T) {
	sys := fakeSys{cwd: "/work"}
	inv := Invocation{Kind: KindMcp, ToolName: conv.Mcp("search", "query")}

	if res := Evaluate(sys, inv, nil, conv.ToolSettings{}); res.Decision != Ask {
		t.Errorf("expected Ask when not in allowed_tools, got %v", res.Decision)
	}
	allowed := conv.AllowedTools{"@search/*"}
	if res := Evaluate(sys, inv, allowed, conv.ToolSettings{}); res.Decision != Allow {
		t.Errorf("expected Allow when matched by allowed_tools, got %v", res.Decision)
	}
}
