package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/startie/api"
	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/service"
	"github.com/wricardo/startie/game/session"
)

// newAPI starts the real REST API on built-in levels
func newAPI(t *testing.T) *httptest.Server {
	t.Helper()

	levels, err := config.NewManager(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	svc := service.NewGameService(session.NewManager(), levels)
	ts := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(func() {
		ts.Close()
		svc.Close()
	})
	return ts
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "Expected text content in result")
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "ab12"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	require.NoError(t, client.apiCall(context.Background(), "GET", "/api", nil, &response))
	assert.Equal(t, "ab12", response["id"])
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://invalid-url-that-does-not-exist:9999")
		assert.Error(t, client.apiCall(context.Background(), "GET", "/api", nil, nil))
	})

	t.Run("plain status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error: 500")
	})

	t.Run("json error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"error": "session not found", "code": 404})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		require.Error(t, err)
		assert.Equal(t, "session not found", err.Error())
	})
}

func TestTools_PlayThrough(t *testing.T) {
	ts := newAPI(t)
	client := NewClient(ts.URL)
	ctx := context.Background()

	result, err := client.handleListLevels(ctx, callTool("list_levels", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Available Levels (7)")
	assert.Contains(t, text, "level5")
	assert.Contains(t, text, "laptop")

	result, err = client.handleCreateSession(ctx, callTool("create_session", map[string]interface{}{"level_id": "level1"}))
	require.NoError(t, err)
	text = resultText(t, result)
	require.Contains(t, text, "Created session: ")
	assert.Contains(t, text, ">...G", "board shows Startie facing SE on the start row")

	sessionID := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(text, "Created session: "), "\n", 2)[0])

	result, err = client.handleParseProgram(ctx, callTool("parse_program", map[string]interface{}{"program": "move()\nmove()\nmove()\nmove()"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Commands: 4")
	assert.Contains(t, text, "move(4)")

	result, err = client.handleRunProgram(ctx, callTool("run_program", map[string]interface{}{
		"session_id": sessionID,
		"program":    "move(4)",
		"intent":     "walk straight to the goal",
		"player":     "ada",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text = resultText(t, result)
	assert.Contains(t, text, "Level complete! Score: 800 (4 commands)")
	assert.Contains(t, text, "Leaderboard rank: 1")
	assert.Contains(t, text, "finished")
	assert.Contains(t, text, "S...>")

	result, err = client.handleRunProgram(ctx, callTool("run_program", map[string]interface{}{
		"session_id": sessionID,
		"program":    "fly()",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Unknown command: fly()")

	result, err = client.handleRunHistory(ctx, callTool("run_history", map[string]interface{}{"session_id": sessionID}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Total: 2")
	assert.Contains(t, text, "score 800")
	assert.Contains(t, text, "parse error")

	result, err = client.handleLeaderboard(ctx, callTool("leaderboard", map[string]interface{}{"level_id": "level1"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "ada")
	assert.Contains(t, text, "800 pts")

	result, err = client.handleHint(ctx, callTool("hint", map[string]interface{}{"session_id": sessionID, "full": true}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Start with: move()")
	assert.Contains(t, text, "Full program:\nmove(4)")

	result, err = client.handleListSessions(ctx, callTool("list_sessions", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Active Sessions (1)")

	result, err = client.handleGetSession(ctx, callTool("get_session", map[string]interface{}{"session_id": sessionID}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "Best score: 800")
	assert.Contains(t, text, "Position: (4,2)")
}

func TestTools_Errors(t *testing.T) {
	ts := newAPI(t)
	client := NewClient(ts.URL)
	ctx := context.Background()

	result, err := client.handleGetSession(ctx, callTool("get_session", map[string]interface{}{"session_id": "zzzz"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = client.handleLevelDetails(ctx, callTool("level_details", map[string]interface{}{"level_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Available levels")

	result, err = client.handleParseProgram(ctx, callTool("parse_program", map[string]interface{}{"program": "while(hacking) {\n  move()"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unclosed_loop")
}

func TestLevelDetails(t *testing.T) {
	ts := newAPI(t)
	client := NewClient(ts.URL)

	result, err := client.handleLevelDetails(context.Background(), callTool("level_details", map[string]interface{}{"level_id": "level5"}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Laptop: (")
	assert.Contains(t, text, "K")
	assert.Contains(t, text, "Jumps allowed: true")
}

func TestGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:0")

	result, err := client.handleGameInstructions(context.Background(), callTool("game_instructions", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	for _, want := range []string{"move(N)", "spin(l)", "while(hacking)", "1000 - 50 per command"} {
		assert.Contains(t, text, want)
	}
}

func TestServeHTTP(t *testing.T) {
	ts := newAPI(t)
	client := NewClient(ts.URL)

	t.Run("tools list", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
		req := httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
		rr := httptest.NewRecorder()
		client.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Result struct {
				Tools []struct {
					Name string `json:"name"`
				} `json:"tools"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

		names := make(map[string]bool)
		for _, tool := range resp.Result.Tools {
			names[tool.Name] = true
		}
		for _, want := range []string{"list_levels", "create_session", "get_session", "list_sessions",
			"parse_program", "run_program", "leaderboard", "hint", "game_instructions"} {
			assert.True(t, names[want], "missing tool %s", want)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		client.ServeHTTP(rr, httptest.NewRequest("GET", "/mcp", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestFormatHistory(t *testing.T) {
	history := &service.HistoryResponse{
		Runs: []service.RunRecord{
			{Program: "move(4)", Success: true, Score: 800, Commands: 4},
			{Program: "jump()", Commands: 1},
		},
		TotalRuns:  2,
		Page:       1,
		PageSize:   20,
		TotalPages: 1,
	}

	result := formatHistory(history)
	assert.Contains(t, result, "Run History (Page 1/1) - Total: 2")
	assert.Contains(t, result, "1. ✓ score 800")
	assert.Contains(t, result, "2. ✗ interrupted")
}
