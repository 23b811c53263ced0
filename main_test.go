package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/wricardo/startie/game/service"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Startie" {
		t.Errorf("Expected app name Startie, got %s", AppName)
	}
}

func TestNewApp(t *testing.T) {
	app := newApp()

	if app.DefaultCommand != "server" {
		t.Errorf("Expected server to be the default command, got %q", app.DefaultCommand)
	}

	want := map[string]bool{"server": false, "mcp": false, "play": false, "levels": false}
	for _, cmd := range app.Commands {
		if _, ok := want[cmd.Name]; ok {
			want[cmd.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Missing command %s", name)
		}
	}

	flags := make(map[string]bool)
	for _, flag := range app.Flags {
		for _, name := range flag.Names() {
			flags[name] = true
		}
	}
	for _, name := range []string{"debug", "levels-dir", "data-dir", "leaderboard"} {
		if !flags[name] {
			t.Errorf("Missing global flag --%s", name)
		}
	}
}

func TestInitializeServices(t *testing.T) {
	fs := afero.NewMemMapFs()

	svcs, err := initializeServices(settings{}, fs, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.game.Close()

	levels, err := svcs.game.ListLevels(context.Background())
	if err != nil || len(levels) != 7 {
		t.Fatalf("Expected 7 built-in levels, got %d (%v)", len(levels), err)
	}
}

func TestInitializeServices_InvalidLevelsDir(t *testing.T) {
	_, err := initializeServices(settings{LevelsDir: "/non/existent/path"}, afero.NewMemMapFs(), nil)
	if err == nil {
		t.Error("Expected error for non-existent levels directory")
	}
}

func TestInitializeServices_BadLeaderboard(t *testing.T) {
	_, err := initializeServices(settings{Leaderboard: "redis://nope"}, afero.NewMemMapFs(), nil)
	if err == nil {
		t.Error("Expected error for unsupported leaderboard DSN")
	}
}

func TestInitializeServices_DataDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := settings{DataDir: "data"}
	ctx := context.Background()

	svcs, err := initializeServices(cfg, fs, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	info, err := svcs.game.CreateSession(ctx, "level1")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	result, err := svcs.game.Run(ctx, info.ID, service.RunRequest{Program: "move(4)"})
	if err != nil || !result.Success {
		t.Fatalf("Expected a winning run, got %+v (%v)", result, err)
	}
	svcs.game.Close()

	if exists, _ := afero.Exists(fs, filepath.Join("data", "sessions", strings.ToLower(info.ID)+".json")); !exists {
		t.Error("Expected the session file to be written")
	}

	// A restart sees the session and the score
	svcs, err = initializeServices(cfg, fs, nil)
	if err != nil {
		t.Fatalf("Failed to reinitialize services: %v", err)
	}
	defer svcs.game.Close()

	restored, err := svcs.game.GetSession(ctx, info.ID)
	if err != nil {
		t.Fatalf("Expected the session to be restored: %v", err)
	}
	if restored.BestScore != 800 {
		t.Errorf("Expected best score 800, got %d", restored.BestScore)
	}

	entries, err := svcs.game.Leaderboard(ctx, "level1")
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one leaderboard entry, got %d (%v)", len(entries), err)
	}
}

func TestPlayProgram(t *testing.T) {
	svcs, err := initializeServices(settings{}, afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.game.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		level   string
		program string
		success bool
		want    []string
	}{
		{
			name:    "win",
			level:   "level1",
			program: "move(4)",
			success: true,
			want:    []string{"First Steps (level1)", ">...G", "S...>", "Level complete! Score: 800 (4 commands)", "Leaderboard rank: 1"},
		},
		{
			name:    "short",
			level:   "level1",
			program: "move(2)",
			want:    []string{"S.>.G", "Program finished without reaching the goal"},
		},
		{
			name:    "parse error",
			level:   "level1",
			program: "move(2)\nfly()",
			want:    []string{"Unknown command: fly()"},
		},
		{
			name:    "jump not allowed",
			level:   "level1",
			program: "jump()",
			want:    []string{"Jumping is not allowed on this level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			result, err := playProgram(ctx, svcs.game, tt.level, tt.program, "tester", &out, false)
			if err != nil {
				t.Fatalf("playProgram failed: %v", err)
			}
			if result.Success != tt.success {
				t.Errorf("Expected success=%v, got %v", tt.success, result.Success)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected %q in output:\n%s", want, out.String())
				}
			}
		})
	}

	// Play sessions are not left behind
	sessions, _ := svcs.game.ListSessions(ctx)
	if len(sessions) != 0 {
		t.Errorf("Expected no leftover sessions, got %d", len(sessions))
	}

	if _, err := playProgram(ctx, svcs.game, "missing", "move()", "", &bytes.Buffer{}, false); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestPrintLevels(t *testing.T) {
	svcs, err := initializeServices(settings{}, afero.NewMemMapFs(), nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.game.Close()

	var out bytes.Buffer
	if err := printLevels(context.Background(), svcs.game, &out); err != nil {
		t.Fatalf("printLevels failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("Expected 7 lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "level1") {
		t.Errorf("Expected level1 first, got %q", lines[0])
	}
	if !strings.Contains(out.String(), "laptop") {
		t.Errorf("Expected a laptop level in:\n%s", out.String())
	}
}

func TestColorize(t *testing.T) {
	board := "S.>\nO#G"

	if got := colorize(board, false); got != board {
		t.Errorf("Expected board unchanged without color, got %q", got)
	}

	colored := colorize(board, true)
	if !strings.Contains(colored, ansiYellow+">"+ansiReset) {
		t.Errorf("Expected the character in yellow, got %q", colored)
	}
	if !strings.Contains(colored, ansiGreen+"G"+ansiReset) {
		t.Errorf("Expected the goal in green, got %q", colored)
	}
	if !strings.Contains(colored, "\n") || !strings.HasPrefix(colored, "S.") {
		t.Errorf("Expected layout to be preserved, got %q", colored)
	}
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	setupLogging(false, &buf)
	defer setupLogging(false, &bytes.Buffer{})

	log.Debug("hidden")
	log.Info("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Debug records should be filtered at info level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") || !strings.Contains(out, "module=main") {
		t.Errorf("Unexpected log output: %q", out)
	}

	buf.Reset()
	setupLogging(true, &buf)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("Debug records should pass with debug enabled")
	}
}
