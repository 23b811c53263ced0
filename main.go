// Command startie serves the Startie command-language puzzle game.
//
// It supports four commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" – runs a program against a level in the terminal and prints the board
//  4. "levels" – lists the available levels
//
// Flags control host/port, level and data directories, the leaderboard store,
// debug logging, and optional ngrok tunneling for easy external access during
// development. Every flag can also be set through the environment or a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	ngroklog "golang.ngrok.com/ngrok/log/log15"
	"golang.org/x/term"

	"github.com/wricardo/startie/api"
	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/leaderboard"
	"github.com/wricardo/startie/game/service"
	"github.com/wricardo/startie/game/session"
	"github.com/wricardo/startie/transport/mcp"
	"github.com/wricardo/startie/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Startie"
)

var log = log15.New("module", "main")

// main loads .env, parses flags, and runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	app := newApp()
	app.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		setupLogging(cmd.Bool("debug"), os.Stderr)
		switch {
		case envErr == nil:
			log.Debug("loaded environment variables from .env file")
		case !os.IsNotExist(envErr):
			log.Warn("error loading .env file", "err", envErr)
		}
		return ctx, nil
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Crit("exiting", "err", err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "startie",
		Usage:   "Guide Startie to the goal with tiny programs",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.StringFlag{
				Name:    "levels-dir",
				Usage:   "Directory of extra level files (.json, .yaml); built-in levels are always available",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for session files and the file leaderboard; empty keeps everything in memory",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "leaderboard",
				Usage:   "Leaderboard DSN: file://DIR, sqlite3://FILE or postgres://...",
				Sources: cli.EnvVars("LEADERBOARD_DSN"),
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			mcpCommand(),
			playCommand(),
			levelsCommand(),
		},
		DefaultCommand: "server",
	}
}

// setupLogging installs the root log15 handler
func setupLogging(debug bool, w io.Writer) {
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(w, log15.LogfmtFormat())))
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "HTTP server host",
			Sources: cli.EnvVars("HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "HTTP server port",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "Enable ngrok tunnel",
			Sources: cli.EnvVars("NGROK_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "ngrok-domain",
			Usage:   "Custom ngrok domain (optional)",
			Sources: cli.EnvVars("NGROK_DOMAIN"),
		},
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"http"},
		Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
		Flags:   serverFlags(),
		Action:  runServer,
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run MCP stdio server, reusing a running API or starting an internal one",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "External API to reuse when it is reachable",
				Sources: cli.EnvVars("STARTIE_API_URL"),
			},
		},
		Action: runStdioMCP,
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Run a program on a level and print the result",
		ArgsUsage: "[program lines...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "Level ID (defaults to the first level)",
			},
			&cli.StringFlag{
				Name:      "file",
				Aliases:   []string{"f"},
				Usage:     "Read the program from a file",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:    "player",
				Usage:   "Name recorded on the leaderboard when the run wins",
				Sources: cli.EnvVars("USER"),
			},
		},
		Action: runPlay,
	}
}

func levelsCommand() *cli.Command {
	return &cli.Command{
		Name:   "levels",
		Usage:  "List available levels",
		Action: runLevels,
	}
}

// services bundles everything the commands share
type services struct {
	sessions *session.Manager
	game     service.GameService
}

// settings are the global flags shared by every command
type settings struct {
	LevelsDir   string
	DataDir     string
	Leaderboard string
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		LevelsDir:   cmd.String("levels-dir"),
		DataDir:     cmd.String("data-dir"),
		Leaderboard: cmd.String("leaderboard"),
	}
}

// initializeServices wires level/session managers, the leaderboard and the
// game service.
func initializeServices(cfg settings, fs afero.Fs, broadcaster service.Broadcaster) (*services, error) {
	levels, err := config.NewManager(fs, cfg.LevelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	dataDir := cfg.DataDir
	sessions := session.NewManager()
	if dataDir != "" {
		persistence, err := session.NewFilePersistence(fs, filepath.Join(dataDir, "sessions"), levels)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		sessions = session.NewManagerWithPersistence(persistence)

		// Load persisted sessions on startup
		if err := sessions.LoadPersistedSessions(); err != nil {
			log.Warn("failed to load persisted sessions", "err", err)
		}
	}

	dsn := cfg.Leaderboard
	if dsn == "" && dataDir != "" {
		dsn = "file://" + filepath.Join(dataDir, "leaderboard")
	}
	scores, err := leaderboard.Open(dsn, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to open leaderboard: %w", err)
	}

	opts := []service.Option{service.WithLeaderboard(scores)}
	if broadcaster != nil {
		opts = append(opts, service.WithBroadcaster(broadcaster))
	}

	return &services{
		sessions: sessions,
		game:     service.NewGameService(sessions, levels, opts...),
	}, nil
}

// runServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting", "app", AppName, "version", Version)

	// Create WebSocket hub
	hub := websocket.NewHub()
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	svcs, err := initializeServices(settingsFrom(cmd), afero.NewOsFs(), hub)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	var wg sync.WaitGroup

	// Expire idle sessions and drop the ones whose files were deleted
	wg.Add(1)
	go func() {
		defer wg.Done()
		svcs.sessions.RunCleanup(ctx, time.Minute, 24*time.Hour)
	}()

	addr := net.JoinHostPort(cmd.String("host"), fmt.Sprint(cmd.Int("port")))

	// Create API server with the MCP endpoint mounted beside it
	apiServer := api.NewServer(svcs.game, hub)
	apiServer.Handle("/mcp", mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("HTTP server listening", "addr", addr,
			"api", "http://"+addr+"/api",
			"ws", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd, apiServer)
		}()
	}

	// Wait for shutdown signal
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-serveErr:
		log.Error("HTTP server failed", "err", runErr)
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "err", err)
	}
	if err := svcs.game.Close(); err != nil {
		log.Error("game service shutdown error", "err", err)
	}
	if err := svcs.sessions.SaveAllSessions(); err != nil {
		log.Error("failed to save sessions", "err", err)
	}

	// Wait for all goroutines to finish
	wg.Wait()
	<-hubDone
	log.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cmd *cli.Command, handler http.Handler) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(authToken),
		ngrok.WithLogger(ngroklog.NewLogger(log15.New("module", "ngrok"))),
	)
	if err != nil {
		log.Error("failed to start ngrok tunnel", "err", err)
		return
	}

	ngrokURL := tun.URL()
	log.Info("ngrok tunnel established", "url", ngrokURL,
		"api", ngrokURL+"/api",
		"ws", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	// Serve HTTP through ngrok tunnel
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("ngrok server error", "err", err)
	}
	log.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an external API when one
// answers at --api-url; otherwise it starts an internal HTTP API bound to a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := strings.TrimRight(cmd.String("api-url"), "/")
	log.Info("checking for external API server", "url", baseURL)

	if !apiReachable(ctx, baseURL) {
		log.Info("no external API server found, starting internal HTTP server")

		svcs, err := initializeServices(settingsFrom(cmd), afero.NewOsFs(), nil)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svcs.game.Close()

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		httpServer := &http.Server{Handler: api.NewServer(svcs.game, nil)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("internal HTTP server error", "err", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		log.Info("internal HTTP server started", "url", baseURL)
	}

	// Create MCP client pointing to the selected server
	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiReachable reports whether a Startie API answers its health check
func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runPlay runs a program once, headless, and prints the board and outcome
func runPlay(ctx context.Context, cmd *cli.Command) error {
	fs := afero.NewOsFs()

	program := strings.Join(cmd.Args().Slice(), "\n")
	if file := cmd.String("file"); file != "" {
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return fmt.Errorf("failed to read program: %w", err)
		}
		program = string(data)
	}
	if strings.TrimSpace(program) == "" {
		return errors.New("no program given: pass it as arguments or with --file")
	}

	svcs, err := initializeServices(settingsFrom(cmd), fs, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svcs.game.Close()

	color := term.IsTerminal(int(os.Stdout.Fd()))
	result, err := playProgram(ctx, svcs.game, cmd.String("level"), program, cmd.String("player"), os.Stdout, color)
	if err != nil {
		return err
	}
	if !result.Success {
		return cli.Exit("", 2)
	}
	return nil
}

// playProgram runs program on a fresh session of levelID and writes a report
func playProgram(ctx context.Context, game service.GameService, levelID, program, player string, out io.Writer, color bool) (*service.RunResult, error) {
	info, err := game.CreateSession(ctx, levelID)
	if err != nil {
		return nil, err
	}
	defer game.DeleteSession(ctx, info.ID)

	fmt.Fprintf(out, "%s (%s)\n\n%s\n\n", info.Level.Name, info.Level.ID,
		colorize(engine.RenderBoard(info.Level, info.State), color))

	result, err := game.Run(ctx, info.ID, service.RunRequest{Program: program, Player: player})
	if err != nil {
		return nil, err
	}

	if result.ParseError != nil {
		fmt.Fprintf(out, "%s\n", paint(result.Message, ansiRed, color))
		return result, nil
	}

	for _, ev := range result.Events {
		if ev.Type == "sound" {
			continue
		}
		fmt.Fprintf(out, "%6dms  %-8s %s\n", ev.AtMS, ev.Type, ev.Message)
	}
	fmt.Fprintf(out, "\n%s\n\n", colorize(engine.RenderBoard(info.Level, result.State), color))

	status := ansiRed
	if result.Success {
		status = ansiGreen
	}
	fmt.Fprintln(out, paint(result.Message, status, color))
	if result.Rank > 0 {
		fmt.Fprintf(out, "Leaderboard rank: %d\n", result.Rank)
	}
	return result, nil
}

// runLevels prints the level list
func runLevels(ctx context.Context, cmd *cli.Command) error {
	svcs, err := initializeServices(settingsFrom(cmd), afero.NewOsFs(), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svcs.game.Close()

	return printLevels(ctx, svcs.game, os.Stdout)
}

func printLevels(ctx context.Context, game service.GameService, out io.Writer) error {
	levels, err := game.ListLevels(ctx)
	if err != nil {
		return err
	}

	for _, level := range levels {
		var features []string
		if level.AllowJump {
			features = append(features, "jump")
		}
		if level.HasLaptop {
			features = append(features, "laptop")
		}
		if level.ElevatedGoal {
			features = append(features, "elevated goal")
		}
		fmt.Fprintf(out, "%-10s %-24s %2dx%-2d %s\n",
			level.ID, level.Name, level.Width, level.Height, strings.Join(features, ", "))
	}
	return nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

func paint(s, code string, on bool) string {
	if !on {
		return s
	}
	return code + s + ansiReset
}

// colorize highlights the character, goal, laptop and gaps of a rendered board
func colorize(board string, on bool) string {
	if !on {
		return board
	}

	var b strings.Builder
	for _, r := range board {
		switch r {
		case '>', '^', '<', 'v':
			b.WriteString(paint(string(r), ansiYellow, true))
		case 'G':
			b.WriteString(paint(string(r), ansiGreen, true))
		case 'K':
			b.WriteString(paint(string(r), ansiBlue, true))
		case 'O', '#':
			b.WriteString(paint(string(r), ansiDim, true))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
