package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the photo",
}

var boxWidthProperty = map[string]interface{}{
	"type":        "number",
	"description": "Protected box width as a percentage of the canvas edge. Defaults to the configured box (45).",
}

var boxHeightProperty = map[string]interface{}{
	"type":        "number",
	"description": "Protected box height as a percentage of the canvas edge. Defaults to the configured box (80).",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load a photo and return its dimensions, format and the letterbox scale it will receive on the square canvas.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_unload",
			Description: "Drop a photo from the server's decode cache. Photos are also reloaded automatically when the file changes on disk.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "door_prepare",
			Description: "Letterbox a photo onto the square canvas and build the edit mask. The mask is opaque outside a centered protected box and transparent inside it. Writes image.png and mask.png when output_dir is given, otherwise returns both as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty,
					"box_w": boxWidthProperty,
					"box_h": boxHeightProperty,
					"fill": map[string]interface{}{
						"type":        "string",
						"description": "Letterbox fill as hex (#RGB, #RRGGBB or #RRGGBBAA). Defaults to the configured fill.",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Optional directory to write image.png and mask.png into",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "door_preview",
			Description: "Return the letterboxed canvas as base64 PNG with the protected box outlined, to check placement before composing.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty,
					"box_w": boxWidthProperty,
					"box_h": boxHeightProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "door_suggest_box",
			Description: "Look for a door frame near the center of the letterboxed photo and suggest protected box percentages that cover it. Falls back to the default box when no frame is found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "door_compose",
			Description: "Prepare the photo and mask, then send them with a prompt to the configured image-editing provider. Returns the result URL, or writes inline results to output.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty,
					"box_w": boxWidthProperty,
					"box_h": boxHeightProperty,
					"prompt": map[string]interface{}{
						"type":        "string",
						"description": "Edit instruction. Defaults to the configured prompt.",
					},
					"size": map[string]interface{}{
						"type":        "string",
						"description": "Requested output size as WIDTHxHEIGHT. Default 1024x1024",
						"default":     "1024x1024",
					},
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Optional file path for inline image results",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
