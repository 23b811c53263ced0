// Package mcp exposes Startie to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request to the REST
// API, so the same server state backs the web UI, websocket watchers and
// agents.
//
// MCP Tools:
//   - list_levels, level_details: browse levels and see them as text boards
//   - create_session, get_session, list_sessions: manage play sessions
//   - parse_program: check a program and its score without running it
//   - run_program: run a program on a session, with an intent note
//   - run_history: paginated past runs
//   - leaderboard: top scores for a level
//   - hint: first step (or all) of the shortest known program
//   - game_instructions: the language reference
//
// Transport Modes:
//
//	// Stdio
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP, single JSON-RPC message per POST
//	router.Handle("/mcp", client)
package mcp
