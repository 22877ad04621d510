// Package mcpclient connects to external MCP tool servers, discovers the
// tools they advertise, and invokes them on the loop's behalf. It is the
// producer for catalog.Sanitize's mcpToolSpecs parameter: a Manager turns
// a list of configured servers into the map of raw ToolSpecs the
// sanitizer merges with built-ins.
package mcpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"agentrun/pkg/agent/conv"
)

// ServerConfig names one external MCP tool server, launched as a child
// process speaking the stdio transport.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     []string
}

// Manager owns one live client connection per configured server and
// serves both catalog discovery and tool invocation against them.
type Manager struct {
	clientName    string
	clientVersion string

	mu      sync.Mutex
	clients map[string]*client.Client
	schemas map[string]map[string]*jsonschema.Schema // server -> tool -> compiled input schema
}

// NewManager creates a Manager. clientName/clientVersion identify this
// runtime to each server during MCP's initialize handshake.
func NewManager(clientName, clientVersion string) *Manager {
	return &Manager{
		clientName:    clientName,
		clientVersion: clientVersion,
		clients:       make(map[string]*client.Client),
		schemas:       make(map[string]map[string]*jsonschema.Schema),
	}
}

// DiscoverAll connects to every configured server concurrently, retrying
// the connect-and-initialize handshake with exponential backoff, and
// returns the raw tool specs each server advertises keyed by server
// name. A server that never comes up is reported in errs but does not
// prevent the others' tools from being returned.
func (m *Manager) DiscoverAll(ctx context.Context, servers []ServerConfig) (map[string][]conv.ToolSpec, map[string]error) {
	type result struct {
		name  string
		specs []conv.ToolSpec
		err   error
	}

	results := make([]result, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		i, srv := i, srv
		g.Go(func() error {
			specs, err := m.discoverOne(gctx, srv)
			results[i] = result{name: srv.Name, specs: specs, err: err}
			return nil // per-server errors are reported, not fatal to the group
		})
	}
	_ = g.Wait()

	specsByServer := make(map[string][]conv.ToolSpec, len(servers))
	errsByServer := make(map[string]error)
	for _, r := range results {
		if r.err != nil {
			errsByServer[r.name] = r.err
			continue
		}
		specsByServer[r.name] = r.specs
	}
	return specsByServer, errsByServer
}

func (m *Manager) discoverOne(ctx context.Context, srv ServerConfig) ([]conv.ToolSpec, error) {
	var c *client.Client
	connect := func() error {
		cl, err := client.NewStdioMCPClient(srv.Command, srv.Env, srv.Args...)
		if err != nil {
			return fmt.Errorf("launch mcp server %s: %w", srv.Name, err)
		}
		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{Name: m.clientName, Version: m.clientVersion}
		if _, err := cl.Initialize(ctx, initReq); err != nil {
			cl.Close()
			return fmt.Errorf("initialize mcp server %s: %w", srv.Name, err)
		}
		c = cl
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, err
	}

	toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("list tools on %s: %w", srv.Name, err)
	}

	specs := make([]conv.ToolSpec, 0, len(toolsResult.Tools))
	schemas := make(map[string]*jsonschema.Schema, len(toolsResult.Tools))
	for _, t := range toolsResult.Tools {
		schemaMap, err := toolInputSchemaMap(t)
		if err != nil {
			continue // an unparsable advertised schema drops only that tool
		}
		specs = append(specs, conv.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: schemaMap})
		if compiled, err := compileSchema(t.Name, schemaMap); err == nil {
			schemas[t.Name] = compiled
		}
	}

	m.mu.Lock()
	m.clients[srv.Name] = c
	m.schemas[srv.Name] = schemas
	m.mu.Unlock()

	return specs, nil
}

// toolInputSchemaMap re-marshals an advertised MCP tool's raw input schema
// into the plain map shape conv.ToolSpec carries, patching in a "type":
// "object" default when a server omits it rather than rejecting the tool
// outright: sjson.SetBytes edits the raw schema in place without needing a
// typed target for every possible JSON-Schema shape a server might send.
func toolInputSchemaMap(t mcp.Tool) (map[string]any, error) {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, err
	}
	if !gjson.GetBytes(raw, "type").Exists() {
		raw, err = sjson.SetBytes(raw, "type", "object")
		if err != nil {
			return nil, err
		}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceURL := "mem://" + name + ".json"
	if err := compiler.AddResource(resourceURL, schemaMap); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

// Call validates args against the server's advertised input schema and
// invokes the named tool, translating the MCP result into the runtime's
// own ToolResultItem form.
func (m *Manager) Call(ctx context.Context, server, tool string, args json.RawMessage) ([]conv.ToolResultItem, error) {
	m.mu.Lock()
	c, ok := m.clients[server]
	schema := m.schemas[server][tool]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mcp server not connected: %s", server)
	}

	var decoded any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, fmt.Errorf("decode arguments for %s/%s: %w", server, tool, err)
		}
	}
	if schema != nil && decoded != nil {
		if err := schema.Validate(decoded); err != nil {
			return nil, fmt.Errorf("arguments for %s/%s failed schema validation: %w", server, tool, err)
		}
	}

	argMap, _ := decoded.(map[string]any)
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = tool
	callReq.Params.Arguments = argMap

	res, err := c.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("call %s/%s: %w", server, tool, err)
	}

	items := make([]conv.ToolResultItem, 0, len(res.Content))
	for _, content := range res.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			items = append(items, conv.ToolResultItem{Kind: conv.ToolResultItemText, Text: text.Text})
			continue
		}
		if img, ok := mcp.AsImageContent(content); ok {
			data, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				continue
			}
			items = append(items, conv.ToolResultItem{Kind: conv.ToolResultItemImage, MediaType: img.MIMEType, ImageData: data})
		}
	}
	return items, nil
}

// Close shuts down every connected server. It is safe to call once the
// runtime holding the Manager is done with it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.clients {
		c.Close()
		delete(m.clients, name)
	}
}
