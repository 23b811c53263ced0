package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/spf13/afero"

	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/service"
	"github.com/wricardo/startie/game/session"
	"github.com/wricardo/startie/transport/websocket"
)

// newTestServer wires the real service stack with built-in levels and
// in-memory sessions
func newTestServer(t *testing.T) (*Server, service.GameService) {
	t.Helper()

	levels, err := config.NewManager(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := service.NewGameService(session.NewManager(), levels, service.WithBroadcaster(hub))
	t.Cleanup(func() {
		svc.Close()
		cancel()
	})

	return NewServer(svc, hub), svc
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func createSession(t *testing.T, s *Server, levelID string) *service.SessionInfo {
	t.Helper()
	rr := doRequest(t, s, "POST", "/api/sessions", map[string]string{"level_id": levelID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var info service.SessionInfo
	decode(t, rr, &info)
	return &info
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "healthy") {
		t.Errorf("Unexpected body: %s", rr.Body.String())
	}
}

func TestLevels(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("list", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/levels", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count  int                  `json:"count"`
			Levels []*service.LevelInfo `json:"levels"`
		}
		decode(t, rr, &resp)
		if resp.Count != 7 || len(resp.Levels) != 7 {
			t.Fatalf("Expected 7 levels, got %d", resp.Count)
		}
		if resp.Levels[0].ID != "level1" {
			t.Errorf("Expected level1 first, got %s", resp.Levels[0].ID)
		}
	})

	t.Run("get", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/levels/level1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var level engine.Level
		decode(t, rr, &level)
		if level.Width != 5 || level.Height != 5 {
			t.Errorf("Expected a 5x5 level, got %dx%d", level.Width, level.Height)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/levels/nope", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("Expected status 404, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Available levels") {
			t.Errorf("Expected available levels in error, got %s", rr.Body.String())
		}
	})

	t.Run("schema", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/schema/level", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var schema struct {
			Properties map[string]json.RawMessage `json:"properties"`
		}
		decode(t, rr, &schema)
		for _, field := range []string{"layout", "tiles", "allow_jump", "laptop"} {
			if _, ok := schema.Properties[field]; !ok {
				t.Errorf("Schema is missing property %q", field)
			}
		}
	})
}

func TestParse(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name     string
		program  string
		valid    bool
		commands int
		kind     engine.ParseErrorKind
	}{
		{"simple", "move(2)\nspin(l)", true, 3, ""},
		{"loop", "move()\nwhile(hacking) {\n  move()\n}", true, 1, ""},
		{"unknown command", "fly()", false, 0, engine.ErrUnknownCommand},
		{"unclosed loop", "while(hacking) {\n  move()", false, 0, engine.ErrUnclosedLoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "POST", "/api/parse", map[string]string{"program": tt.program})
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rr.Code)
			}
			var result service.ParseResult
			decode(t, rr, &result)
			if result.Valid != tt.valid {
				t.Fatalf("Expected valid=%v, got %v", tt.valid, result.Valid)
			}
			if tt.valid && result.Commands != tt.commands {
				t.Errorf("Expected %d commands, got %d", tt.commands, result.Commands)
			}
			if !tt.valid && result.Error.Kind != tt.kind {
				t.Errorf("Expected error kind %s, got %s", tt.kind, result.Error.Kind)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	info := createSession(t, s, "level2")
	if info.LevelID != "level2" {
		t.Errorf("Expected level2, got %s", info.LevelID)
	}

	rr := doRequest(t, s, "GET", "/api/sessions/"+info.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	// IDs are case-insensitive
	rr = doRequest(t, s, "GET", "/api/sessions/"+strings.ToUpper(info.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for upper-case ID, got %d", rr.Code)
	}

	rr = doRequest(t, s, "DELETE", "/api/sessions/"+info.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, s, "GET", "/api/sessions/"+info.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, "POST", "/api/sessions", map[string]string{"level_id": "missing"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown level, got %d", rr.Code)
	}

	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad JSON, got %d", rec.Code)
	}

	// No body falls back to the default level
	rr = doRequest(t, s, "POST", "/api/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	var info service.SessionInfo
	decode(t, rr, &info)
	if info.LevelID != "level1" {
		t.Errorf("Expected default level1, got %s", info.LevelID)
	}
}

func TestListSessions(t *testing.T) {
	s, _ := newTestServer(t)

	first := createSession(t, s, "level1")
	time.Sleep(5 * time.Millisecond)
	createSession(t, s, "level2")
	time.Sleep(5 * time.Millisecond)
	last := createSession(t, s, "level1")

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{"default newest first", "", 3, last.ID},
		{"oldest first", "?sort=created&order=asc", 3, first.ID},
		{"limit", "?limit=1", 1, last.ID},
		{"level filter", "?level=level2", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "GET", "/api/sessions"+tt.query, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rr.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			decode(t, rr, &resp)
			if resp.Count != tt.wantCount {
				t.Fatalf("Expected %d sessions, got %d", tt.wantCount, resp.Count)
			}
			if resp.Total != 3 {
				t.Errorf("Expected total 3, got %d", resp.Total)
			}
			if tt.wantFirst != "" && resp.Sessions[0].ID != tt.wantFirst {
				t.Errorf("Expected %s first, got %s", tt.wantFirst, resp.Sessions[0].ID)
			}
		})
	}
}

func TestRun(t *testing.T) {
	s, _ := newTestServer(t)
	info := createSession(t, s, "level1")

	t.Run("winning program", func(t *testing.T) {
		rr := doRequest(t, s, "POST", "/api/sessions/"+info.ID+"/run", service.RunRequest{
			Program: "move(4)",
			Player:  "ada",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var result service.RunResult
		decode(t, rr, &result)
		if !result.Success {
			t.Fatalf("Expected success, got %s", result.Message)
		}
		if result.Score != 800 || result.Commands != 4 {
			t.Errorf("Expected score 800 with 4 commands, got %d with %d", result.Score, result.Commands)
		}
		if result.Rank != 1 || !result.NewBest {
			t.Errorf("Expected rank 1 and a new best, got rank %d new_best %v", result.Rank, result.NewBest)
		}
		if got := result.State.Position(); got != (engine.Position{X: 4, Y: 2}) {
			t.Errorf("Expected final position (4,2), got %v", got)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		rr := doRequest(t, s, "POST", "/api/sessions/"+info.ID+"/run", service.RunRequest{Program: "fly()"})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var result service.RunResult
		decode(t, rr, &result)
		if result.ParseError == nil || result.Message != "Unknown command: fly()" {
			t.Errorf("Expected an unknown command error, got %+v", result)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		rr := doRequest(t, s, "POST", "/api/sessions/zzzz/run", service.RunRequest{Program: "move()"})
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rr.Code)
		}
	})

	t.Run("state", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/sessions/"+info.ID+"/state", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var state engine.State
		decode(t, rr, &state)
		if state.Position() != (engine.Position{X: 4, Y: 2}) {
			t.Errorf("Expected (4,2), got %v", state.Position())
		}
	})

	t.Run("history", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/sessions/"+info.ID+"/history?order=asc&limit=1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var history service.HistoryResponse
		decode(t, rr, &history)
		if history.TotalRuns != 2 || len(history.Runs) != 1 || !history.HasNext {
			t.Fatalf("Unexpected history page: %+v", history)
		}
		if history.Runs[0].Program != "move(4)" {
			t.Errorf("Expected the winning run first, got %q", history.Runs[0].Program)
		}
	})

	t.Run("leaderboard", func(t *testing.T) {
		rr := doRequest(t, s, "GET", "/api/levels/level1/leaderboard", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Entries []struct {
				Player string `json:"player"`
				Score  int    `json:"score"`
			} `json:"entries"`
		}
		decode(t, rr, &resp)
		if len(resp.Entries) != 1 || resp.Entries[0].Player != "ada" || resp.Entries[0].Score != 800 {
			t.Errorf("Unexpected leaderboard: %+v", resp.Entries)
		}
	})
}

func TestHint(t *testing.T) {
	s, _ := newTestServer(t)
	info := createSession(t, s, "level1")

	rr := doRequest(t, s, "GET", "/api/sessions/"+info.ID+"/hint", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var hint service.HintResult
	decode(t, rr, &hint)
	if !hint.Solvable || hint.Program != "move(4)" || hint.Commands != 4 {
		t.Errorf("Unexpected hint: %+v", hint)
	}
}

func TestWebSocket(t *testing.T) {
	s, _ := newTestServer(t)
	info := createSession(t, s, "level1")

	ts := httptest.NewServer(s)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	t.Run("requires session", func(t *testing.T) {
		_, resp, err := gorillaws.DefaultDialer.Dial(wsURL+"/ws", nil)
		if err == nil {
			t.Fatal("Expected dial to fail without a session")
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		_, resp, err := gorillaws.DefaultDialer.Dial(wsURL+"/ws?session=zzzz", nil)
		if err == nil {
			t.Fatal("Expected dial to fail for an unknown session")
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
	})

	t.Run("initial state and run", func(t *testing.T) {
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL+"/ws?session="+info.ID, nil)
		if err != nil {
			t.Fatalf("Failed to dial: %v", err)
		}
		defer conn.Close()

		first := nextMessage(t, conn)
		if first.Event != websocket.EventState || first.State == nil {
			t.Fatalf("Expected an initial state frame, got %+v", first)
		}
		if first.State.Position() != (engine.Position{X: 0, Y: 2}) {
			t.Errorf("Expected the start position, got %v", first.State.Position())
		}

		rr := doRequest(t, s, "POST", "/api/sessions/"+info.ID+"/run", service.RunRequest{Program: "move(4)"})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			msg := nextMessage(t, conn)
			if msg.Event == "run_complete" {
				return
			}
		}
		t.Fatal("Never received run_complete")
	})
}

// nextMessage reads one message, buffering frames the hub batched together
func nextMessage(t *testing.T, conn *gorillaws.Conn) websocket.Message {
	t.Helper()
	if pending, ok := pendingMessages[conn]; ok && len(pending) > 0 {
		pendingMessages[conn] = pending[1:]
		return pending[0]
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var messages []websocket.Message
	for _, line := range strings.Split(string(data), "\n") {
		var msg websocket.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("Failed to decode message %q: %v", line, err)
		}
		messages = append(messages, msg)
	}
	pendingMessages[conn] = messages[1:]
	return messages[0]
}

var pendingMessages = map[*gorillaws.Conn][]websocket.Message{}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("level 'x': %w", config.ErrLevelNotFound), http.StatusNotFound},
		{fmt.Errorf("session not found: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("failed to create session: %w", session.ErrInvalidSessionID), http.StatusBadRequest},
		{fmt.Errorf("bad level: %w", config.ErrInvalidLevel), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
