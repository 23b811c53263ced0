// Package session provides session management for Startie.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - File persistence of session records
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the session manager that satisfies service.SessionManager.
// FilePersistence stores one JSON record per session on an afero filesystem,
// written atomically. A record holds the level ID, run history, best score
// and last drawn state; loading it resolves the level again and builds a
// fresh engine, so a restored session never resumes a run in flight.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Caller-chosen IDs may
// use letters, digits, dashes and underscores. IDs are case-insensitive.
//
// Usage:
//
//	levels, _ := config.NewManager(afero.NewOsFs(), "")
//	store, _ := session.NewFilePersistence(afero.NewOsFs(), "sessions", levels)
//	manager := session.NewManagerWithPersistence(store)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		return err
//	}
//	go manager.RunCleanup(ctx, time.Minute, 24*time.Hour)
package session
