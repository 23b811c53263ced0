// Package config provides level management for Startie.
//
// The config package handles:
//   - Loading level descriptions from JSON or YAML files
//   - Serving the built-in levels embedded in the binary
//   - Caching loaded levels
//   - Listing levels in play order
//
// Level Format:
//
// A level gives its grid either as a full tiles array or as a compact layout,
// one string per row:
//
//	.  floor        S  start        G  goal
//	O  hole         #  void         L  lifted (height 1)
//	1-9  floor raised to that height
//
// Optional fields declare the start, an elevated goal override, the laptop
// pickup and whether jumping is allowed.
//
// Usage:
//
//	manager, err := config.NewManager(afero.NewOsFs(), "levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel("level4")
//	levels, err := manager.ListLevels()
//
// Decoding only checks that the grid matches the declared dimensions. Whether
// a level is solvable is left to the solver package.
package config
