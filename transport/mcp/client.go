package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/leaderboard"
	"github.com/wricardo/startie/game/service"
)

var log = log15.New("module", "mcp")

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Headless runs of long loops take a moment on the server
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Startie",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Startie - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Write a short program that walks Startie from the start tile to the goal.
Fewer commands score more: 1000 - 50 per command, never below 100.

AVAILABLE TOOLS:
- list_levels: List levels and their best scores
- level_details: Show a level as a text board
- create_session: Create a play session on a level
- get_session: Get session details and the current board
- list_sessions: List all active sessions
- parse_program: Check a program and count its commands without running it
- run_program: Run a program on a session - requires intent explanation
- run_history: View past runs of a session
- leaderboard: Top scores for a level
- hint: Shortest known program for a session's level
- game_instructions: Get the full language reference and rules

NOTE: The 'intent' parameter on run_program serves as rubber duck debugging - explain your reasoning!`),
	)

	// Register all tools
	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Levels
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List available levels with their size, features and best score",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "level_details",
		Description: "Show a level as a text board with its legend",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level ID, for example level3",
				},
			},
			Required: []string{"level_id"},
		},
	}, c.handleLevelDetails)

	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new play session, optionally on a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level to play (optional, defaults to the first level)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active play sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session, including the current board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Programs
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "parse_program",
		Description: "Parse a program, show its normalized form and the score it would earn",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"program": map[string]interface{}{
					"type":        "string",
					"description": "Program text, one command per line",
				},
			},
			Required: []string{"program"},
		},
	}, c.handleParseProgram)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_program",
		Description: "Run a program on a session from the level's start and report the outcome",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"program": map[string]interface{}{
					"type":        "string",
					"description": "Program text, for example \"move(2)\\nspin(l)\\nmove()\"",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of what this program is meant to do (serves as a rubber duck to help explain your reasoning)",
				},
				"player": map[string]interface{}{
					"type":        "string",
					"description": "Name recorded on the leaderboard when the run wins",
				},
				"live": map[string]interface{}{
					"type":        "boolean",
					"description": "Play the run in real time for websocket watchers instead of waiting for the result",
				},
			},
			Required: []string{"session_id", "program"},
		},
	}, c.handleRunProgram)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_history",
		Description: "Get run history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunHistory)

	// Scores and help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Top scores for a level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level ID",
				},
			},
			Required: []string{"level_id"},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hint",
		Description: "Get the first step of the shortest known solution for a session's level. Set full to see the whole program.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"full": map[string]interface{}{
					"type":        "boolean",
					"description": "Reveal the complete program",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleHint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the command language reference and game rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers single JSON-RPC messages posted to the /mcp endpoint
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications carry no response
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Warn("failed to write MCP response", "err", err)
	}
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	return request.GetArguments()
}

// Tool handlers

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int                 `json:"count"`
		Levels []service.LevelInfo `json:"levels"`
	}
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available Levels (%d):\n\n", response.Count)
	for _, level := range response.Levels {
		fmt.Fprintf(&b, "• %s - %s\n  %s\n  Grid: %dx%d%s\n",
			level.ID, level.Name, level.Description, level.Width, level.Height, levelFeatures(&level))
		if level.BestScore > 0 {
			fmt.Fprintf(&b, "  Best score: %d\n", level.BestScore)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLevelDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levelID, _ := arguments(request)["level_id"].(string)

	var level engine.Level
	if err := c.apiCall(ctx, "GET", "/api/levels/"+url.PathEscape(levelID), nil, &level); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLevel(&level, nil)), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levelID, _ := arguments(request)["level_id"].(string)

	body := map[string]string{}
	if levelID != "" {
		body["level_id"] = levelID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %s\n\n", session.ID, session.LevelID)
	if session.Level != nil {
		result += formatLevel(session.Level, session.State)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Level: %s, Runs: %d, Best: %d, Created: %s)\n",
			s.ID, s.LevelID, s.Runs, s.BestScore, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleParseProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, _ := arguments(request)["program"].(string)

	var result service.ParseResult
	if err := c.apiCall(ctx, "POST", "/api/parse", map[string]string{"program": program}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Valid {
		return mcp.NewToolResultError(fmt.Sprintf("Parse error (%s): %s", result.Error.Kind, result.Error.Message)), nil
	}

	text := fmt.Sprintf("Program is valid.\nCommands: %d\nScore if it wins: %d\n\nNormalized:\n%s\n",
		result.Commands, result.Score, result.Formatted)
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleRunProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	program, _ := args["program"].(string)
	player, _ := args["player"].(string)
	live, _ := args["live"].(bool)

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	intent, _ := args["intent"].(string)
	log.Debug("run_program", "session", sessionID, "intent", intent)

	body := service.RunRequest{Program: program, Player: player, Live: live}

	var result service.RunResult
	path := fmt.Sprintf("/api/sessions/%s/run", url.PathEscape(sessionID))
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.ParseError != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Parse error (%s): %s", result.ParseError.Kind, result.ParseError.Message)), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		// The run already happened; report it without a board
		return mcp.NewToolResultText(formatRunResult(&result, nil)), nil
	}
	return mcp.NewToolResultText(formatRunResult(&result, session.Level)), nil
}

func (c *Client) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprint(int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprint(int(limit)))
	}

	var history service.HistoryResponse
	path := fmt.Sprintf("/api/sessions/%s/history?%s", url.PathEscape(sessionID), params.Encode())
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levelID, _ := arguments(request)["level_id"].(string)

	var response struct {
		LevelID string              `json:"level_id"`
		Entries []leaderboard.Entry `json:"entries"`
	}
	path := fmt.Sprintf("/api/levels/%s/leaderboard", url.PathEscape(levelID))
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No scores yet for %s.", levelID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard for %s:\n\n", response.LevelID)
	for i, entry := range response.Entries {
		player := entry.Player
		if player == "" {
			player = "anonymous"
		}
		fmt.Fprintf(&b, "%2d. %-12s %4d pts  %2d commands  %s\n",
			i+1, player, entry.Score, entry.Commands, entry.Date.Format("2006-01-02"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	full, _ := args["full"].(bool)

	var hint service.HintResult
	path := fmt.Sprintf("/api/sessions/%s/hint", url.PathEscape(sessionID))
	if err := c.apiCall(ctx, "GET", path, nil, &hint); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !hint.Solvable {
		return mcp.NewToolResultText(fmt.Sprintf("No winning program exists for %s.", hint.LevelID)), nil
	}

	text := fmt.Sprintf("The shortest program for %s uses %d commands (score %d).\nStart with: %s\n",
		hint.LevelID, hint.Commands, hint.Score, hint.FirstStep)
	if full {
		text += "\nFull program:\n" + hint.Program + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

const gameInstructions = `Startie - Complete Instructions

GAME OBJECTIVE:
Startie stands on the start tile of an isometric grid. Write a program that
leaves Startie standing on the goal tile when it finishes.

COMMANDS (one per line):
• move()       Step one tile forward
• move(N)      Same as N move() lines
• jump()       Jump forward: onto a lifted tile directly ahead, otherwise over
               one tile to the tile after it. Only on levels that allow jumps.
• jump(N)      Same as N jump() lines
• spin(l)      Turn left  (SE -> NE -> NW -> SW -> SE)
• spin(r)      Turn right (SE -> SW -> NW -> NE -> SE)
• while(hacking) {
    ...
  }            Repeat the body while Startie carries the laptop and is not on
               the goal. Needs the laptop when the loop starts.

Blank lines and surrounding spaces are ignored. A loop may also be written on
one line: while(hacking) { move() }

FACING:
SE walks +x, NE walks -y, NW walks -x, SW walks +y. Startie starts facing SE.

BOARD LEGEND (level_details and get_session):
  .  floor          S  start          G  goal
  O  hole           #  void           L  lifted tile (jump onto it)
  1-9  raised tile  K  laptop         > ^ < v  Startie and its facing

FAILURE:
• Stepping onto a hole, void, a lifted tile or off the grid: Startie falls and
  respawns at the start. The run ends.
• jump() on a level without jumps, while(hacking) without the laptop, or a loop
  that runs 1000 times: the run stops on the spot.

SCORING:
A winning program scores 1000 - 50 per command, never below 100. A loop counts
as its body size minus one, so while(hacking) { move() } is free.

STRATEGY TIPS:
1. Use parse_program to check syntax and the command count before running
2. Pick up the laptop early; a hacking loop can replace a long straight walk
3. Use hint when stuck; it shows the first step of the shortest program
4. Every run starts from the level's start, so send the whole program each time`

func levelFeatures(level *service.LevelInfo) string {
	var features []string
	if level.AllowJump {
		features = append(features, "jumps")
	}
	if level.HasLaptop {
		features = append(features, "laptop")
	}
	if level.ElevatedGoal {
		features = append(features, "elevated goal")
	}
	if len(features) == 0 {
		return ""
	}
	return " [" + strings.Join(features, ", ") + "]"
}

func formatLevel(level *engine.Level, state *engine.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) - %dx%d\n", level.Name, level.ID, level.Width, level.Height)
	if level.Description != "" {
		fmt.Fprintf(&b, "%s\n", level.Description)
	}

	start := level.StartPosition()
	fmt.Fprintf(&b, "Start: (%d,%d) facing SE\n", start.X, start.Y)
	if goal, height, ok := level.GoalPosition(); ok {
		if height > 0 {
			fmt.Fprintf(&b, "Goal: (%d,%d) at height %d\n", goal.X, goal.Y, height)
		} else {
			fmt.Fprintf(&b, "Goal: (%d,%d)\n", goal.X, goal.Y)
		}
	}
	if level.Laptop != nil {
		fmt.Fprintf(&b, "Laptop: (%d,%d)\n", level.Laptop.X, level.Laptop.Y)
	}
	fmt.Fprintf(&b, "Jumps allowed: %v\n\n", level.AllowJump)

	b.WriteString(engine.RenderBoard(level, state))
	b.WriteString("\n")
	return b.String()
}

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nLevel: %s\nCreated: %s\nRuns: %d\nBest score: %d\n",
		session.ID, session.LevelID, session.CreatedAt.Format(time.RFC3339), session.Runs, session.BestScore)
	if session.Running {
		result += "A live run is in progress\n"
	}
	if session.State != nil {
		result += "\n" + formatState(session.State)
	}
	if session.Level != nil {
		result += "\n" + formatLevel(session.Level, session.State)
	}
	return result
}

func formatState(state *engine.State) string {
	result := fmt.Sprintf("Position: (%d,%d) height %d, facing %s\n", state.X, state.Y, state.Z, state.Facing)
	if state.HasLaptop {
		result += "Carrying the laptop\n"
	}
	if state.Failed {
		result += "Last run fell\n"
	}
	return result
}

func formatRunResult(result *service.RunResult, level *engine.Level) string {
	var b strings.Builder

	switch {
	case result.Live:
		fmt.Fprintf(&b, "%s (live, %d commands). Watch it on /ws?session=%s\n",
			result.Message, result.Commands, result.SessionID)
	case result.Success:
		b.WriteString("🎉 " + result.Message + "\n")
	default:
		b.WriteString("✗ " + result.Message + "\n")
	}

	if result.NewBest {
		b.WriteString("New best score for this session!\n")
	}
	if result.Rank > 0 {
		fmt.Fprintf(&b, "Leaderboard rank: %d\n", result.Rank)
	}
	if result.Outcome != nil {
		fmt.Fprintf(&b, "Executed %d actions\n", result.Outcome.Executed)
	}

	if len(result.Events) > 0 {
		b.WriteString("\nTrace:\n")
		for _, ev := range result.Events {
			if ev.Type == "sound" {
				continue
			}
			fmt.Fprintf(&b, "  %6dms %-8s %s\n", ev.AtMS, ev.Type, ev.Message)
		}
	}

	if result.State != nil {
		b.WriteString("\n" + formatState(result.State))
		if level != nil {
			b.WriteString("\n" + engine.RenderBoard(level, result.State) + "\n")
		}
	}

	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	result := fmt.Sprintf("Run History (Page %d/%d) - Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalRuns)

	for i, run := range history.Runs {
		num := (history.Page-1)*history.PageSize + i + 1
		status := "✗"
		detail := ""
		switch {
		case run.Success:
			status = "✓"
			detail = fmt.Sprintf("score %d", run.Score)
		case run.ParseError != nil:
			detail = "parse error: " + run.ParseError.Message
		case run.Outcome != nil:
			detail = string(run.Outcome.Kind)
			if run.Outcome.Reason != "" {
				detail += " (" + run.Outcome.Reason + ")"
			}
		default:
			detail = "interrupted"
		}
		program := strings.ReplaceAll(strings.TrimSpace(run.Program), "\n", "; ")
		result += fmt.Sprintf("%d. %s %s [%d commands, ended at (%d,%d)]\n   %s\n",
			num, status, detail, run.Commands, run.Final.X, run.Final.Y, program)
	}

	return result
}
