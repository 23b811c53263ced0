// Package service provides the business logic layer for Startie.
//
// The service package implements:
//   - Multi-session management, one engine per session
//   - Level listing and loading
//   - Program parsing, headless runs and live runs
//   - Run history and leaderboard scoring
//   - Hints from the level solver
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// LevelManager loads levels by ID.
// Broadcaster pushes live run frames to subscribers.
//
// Runs:
//
// A headless run drives the session's virtual scheduler until the engine
// finishes and returns the full result, including every event the run
// emitted. A live run paces the same scheduler against the wall clock in a
// background goroutine, streams each drawn frame through the Broadcaster and
// returns immediately. Starting any run on a session interrupts the live run
// in flight; an interrupted run is recorded without an outcome.
//
// Usage:
//
//	levels, _ := config.NewManager(afero.NewOsFs(), "")
//	sessions := session.NewManager(levels)
//	svc := service.NewGameService(sessions, levels,
//		service.WithLeaderboard(store),
//		service.WithBroadcaster(hub))
//	defer svc.Close()
//
//	info, err := svc.CreateSession(ctx, "level1")
//	if err != nil {
//		return err
//	}
//	result, err := svc.Run(ctx, info.ID, service.RunRequest{Program: "move(4)"})
package service
