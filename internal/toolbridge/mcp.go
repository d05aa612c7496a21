package toolbridge

// InjectMCPTools adds the MCP bridging tools to a canonical request body
// (§4.3 "MCP tool injection"): list_mcp_resources is always made available
// once the request declares any tools at all; read_mcp_resource and
// list_mcp_resource_templates are added only when servers is non-empty
// (a non-empty server set means a prior turn's dot-rewritten tool name —
// server.fn — discovered at least one MCP server worth bridging to). A
// system guidance message describing the three tools is prepended exactly
// once, only when this call actually injected something.
func InjectMCPTools(body map[string]any, servers []string) {
	existing, _ := body["tools"].([]any)
	if len(existing) == 0 {
		return
	}

	tools := append(existing, mcpToolDef(
		"list_mcp_resources",
		"List the MCP resources available to this request.",
		map[string]any{"type": "object", "properties": map[string]any{}},
	))

	if len(servers) > 0 {
		tools = append(tools,
			mcpToolDef(
				"read_mcp_resource",
				"Read one MCP resource by server and URI.",
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"server": map[string]any{"type": "string", "enum": servers},
						"uri":    map[string]any{"type": "string"},
					},
					"required": []string{"server", "uri"},
				},
			),
			mcpToolDef(
				"list_mcp_resource_templates",
				"List the resource templates an MCP server exposes.",
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"server": map[string]any{"type": "string", "enum": servers},
					},
					"required": []string{"server"},
				},
			),
		)
	}

	body["tools"] = tools
	prependMCPGuidance(body)
}

func mcpToolDef(name, description string, schema map[string]any) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters":  schema,
		},
	}
}

const mcpGuidanceText = "MCP resource tools are available: call list_mcp_resources to see what's exposed, " +
	"and (once a server is known) read_mcp_resource / list_mcp_resource_templates to fetch from it."

func prependMCPGuidance(body map[string]any) {
	messages, _ := body["messages"].([]any)

	guidance := map[string]any{"role": "system", "content": mcpGuidanceText}
	body["messages"] = append([]any{guidance}, messages...)
}
