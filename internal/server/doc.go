// Package server implements the MCP (Model Context Protocol) surface of
// door-studio.
//
// It lets an MCP client such as an AI assistant prepare a door photo,
// check the protected box and send it for editing. The client addresses
// photos by file path instead of uploading them.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Dimensions, format and letterbox scale of a photo
//   - image_unload: Drop a photo from the decode cache
//   - door_prepare: Letterboxed canvas and edit mask, inline or written to disk
//   - door_preview: Canvas with the protected box outlined
//   - door_suggest_box: Protected box percentages from a detected door frame
//   - door_compose: Prepare, then relay to the image-editing provider
//
// Box sizes are percentages of the canvas edge and must stay within the
// configured slider range.
//
// # Image Caching
//
// Decoded photos are cached by path, so a prepare, preview and compose
// sequence reads the file once. A photo whose size or modification time
// changes on disk is decoded again; image_unload drops one explicitly.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The underlying error string
//
// # Usage
//
//	srv := server.New(relay, server.Settings{CanvasSize: 1024}, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Logs go to stderr because stdout carries the protocol stream.
package server
