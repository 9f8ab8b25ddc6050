// Package mcp exposes the dispatch core as a Model Context Protocol server.
//
// Server answers the MCP lifecycle and discovery methods and routes
// tools/call and resources/read into a dispatch.Dispatcher. Dispatch
// failures are mapped onto MCP conventions: argument and handler failures of
// a tool become a CallToolResult with isError set, while resource failures
// and unknown tools become JSON-RPC errors whose data carries the dispatch
// error kind and message.
//
// Result and parameter shapes are the official go-sdk types, so the wire
// format matches what MCP clients expect.
package mcp
