package overlay

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptnav/kit"
)

// RegisterMCP registers the session tools on srv.
func RegisterMCP(srv *mcp.Server, eps Endpoints) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptnav_list_prompts",
		Description: "List the user prompts found on the current chat page, with the detected platform and panel geometry.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, eps.List, kit.DecodeArgs[ListRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptnav_rescan",
		Description: "Rescan the chat page immediately and return the new prompt list.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, eps.Rescan, kit.DecodeArgs[RescanRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptnav_navigate",
		Description: "Scroll the chat page to a prompt and highlight it briefly.",
		InputSchema: inputSchema(map[string]any{
			"index": map[string]any{"type": "integer", "description": "1-based prompt index", "minimum": 1},
		}, []string{"index"}),
	}, eps.Navigate, kit.DecodeArgs[NavigateRequest])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptnav_panel",
		Description: "Read or change the floating panel: state, collapse, expand, or viewport (with width and height).",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "enum": []string{PanelState, PanelCollapse, PanelExpand, PanelViewport}},
			"width":  map[string]any{"type": "number"},
			"height": map[string]any{"type": "number"},
		}, []string{"action"}),
	}, eps.Panel, kit.DecodeArgs[PanelRequest])
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
