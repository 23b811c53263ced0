// Package storage holds the small file helpers shared by the session,
// leaderboard and level stores. Every write goes through an afero.Fs so tests
// can run against an in-memory filesystem.
package storage
