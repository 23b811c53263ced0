// Package api provides the HTTP REST API for Startie.
//
// Endpoints:
//
// Levels:
//   - GET /api/levels - List levels with their best scores
//   - GET /api/levels/{id} - Get a level definition
//   - GET /api/levels/{id}/leaderboard - Top scores for a level
//   - GET /api/schema/level - JSON Schema of the level format
//
// Programs:
//   - POST /api/parse - Parse and format a program without running it
//
// Session Management:
//   - POST /api/sessions - Create a session, body {"level_id": "level2"}
//   - GET /api/sessions - List sessions (sort, order, limit, level)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - POST /api/sessions/{id}/run - Run a program
//   - GET /api/sessions/{id}/state - Last drawn character state
//   - GET /api/sessions/{id}/history - Run history (page, limit, order)
//   - GET /api/sessions/{id}/hint - Shortest known solution
//
// Streaming:
//   - GET /ws?session={id} - WebSocket feed of frames and run events
//
// A run request looks like:
//
//	{
//	  "program": "move(2)\nspin(l)\nwhile(hacking) {\n  move()\n}",
//	  "live": false,
//	  "player": "ada"
//	}
//
// Headless runs answer 200 with the finished result. Live runs answer 202
// as soon as the program starts and stream every frame over /ws.
//
// Errors are returned as JSON with the matching HTTP status code:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
package api
