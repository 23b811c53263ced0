// Command validate checks level files before they are dropped into a levels
// directory. It checks:
//   - JSON or YAML structure and the grid shape (rows and columns match width/height)
//   - A start and a goal, both inside the grid
//   - The start and the laptop sit on standable tiles
//   - Solvability: the solver finds at least one winning program
//
// The engine itself never rejects odd geometry; this tool is where authors
// find out about it.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15/v3"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/solver"
)

var log = log15.New("module", "validate")

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateLevel loads and validates a single level file
func validateLevel(fs afero.Fs, filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	level, err := config.DecodeLevel(filepath.Base(filePath), data)
	if err != nil {
		result.fail("Invalid level: %v", err)
		return result
	}

	hasStart := level.Start != nil || level.CountTiles(engine.Start) > 0
	if !hasStart {
		result.fail("Must have a start (S tile or start coordinate)")
	} else if start := level.StartPosition(); !level.IsValidPosition(start.X, start.Y) {
		result.fail("Start (%d,%d) is not on a standable tile", start.X, start.Y)
	}

	goal, _, hasGoal := level.GoalPosition()
	if !hasGoal {
		result.fail("Must have a goal (G tile or goal coordinate)")
	} else if !level.InBounds(goal.X, goal.Y) {
		result.fail("Goal (%d,%d) is outside the %dx%d grid", goal.X, goal.Y, level.Width, level.Height)
	}

	if level.Laptop != nil && !level.IsValidPosition(level.Laptop.X, level.Laptop.Y) {
		result.fail("Laptop (%d,%d) is not on a standable tile", level.Laptop.X, level.Laptop.Y)
	}

	if !result.Valid {
		return result
	}

	sol, err := solver.Solve(level)
	if err != nil {
		result.fail("Unsolvable: %v", err)
		return result
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ Name: %s", level.Name),
		fmt.Sprintf("✓ Grid: %dx%d", level.Width, level.Height),
		fmt.Sprintf("✓ Holes: %d", level.CountTiles(engine.Hole)),
		fmt.Sprintf("✓ Lifted: %d", level.CountTiles(engine.Lifted)),
		fmt.Sprintf("✓ Laptop: %v", level.Laptop != nil),
		fmt.Sprintf("✓ Jumps allowed: %v", level.AllowJump),
		fmt.Sprintf("✓ Solvable in %d commands (score %d)", sol.Commands, sol.Score),
	)
	return result
}

// levelFiles lists the level files in dir
func levelFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := afero.Glob(fs, filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// report prints each result and returns whether all of them are valid
func report(results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
			continue
		}

		fmt.Println("❌ INVALID")
		allValid = false
		for _, err := range result.Errors {
			if !strings.HasPrefix(err, "✓") {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All levels are valid!")
	} else {
		fmt.Println("❌ Some levels have errors")
	}
	return allValid
}

// main validates the files given as arguments, or every level file in
// --dir, and exits non-zero if any are invalid.
func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "Check level files for shape, start, goal and solvability",
		ArgsUsage: "[file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Value:   "levels",
				Usage:   "Directory scanned when no files are given",
				Sources: cli.EnvVars("STARTIE_LEVELS_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fs := afero.NewOsFs()

			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				if files, err = levelFiles(fs, cmd.String("dir")); err != nil {
					return fmt.Errorf("error finding level files: %w", err)
				}
			}
			if len(files) == 0 {
				return cli.Exit("no level files found", 1)
			}

			results := make([]ValidationResult, 0, len(files))
			for _, file := range files {
				results = append(results, validateLevel(fs, file))
			}
			if !report(results) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Crit("validate failed", "err", err)
		os.Exit(1)
	}
}
