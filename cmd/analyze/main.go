// Command analyze prints a quick report for every level: grid size, tile
// counts, laptop and jump rules, and the shortest winning program found by
// the solver together with the score it earns.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15/v3"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/solver"
)

var log = log15.New("module", "analyze")

// Report summarizes one level
type Report struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Number    int    `json:"level_number"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Floor     int    `json:"floor"`
	Holes     int    `json:"holes"`
	Lifted    int    `json:"lifted"`
	Void      int    `json:"void"`
	Laptop    bool   `json:"laptop"`
	AllowJump bool   `json:"allow_jump"`

	Solvable bool   `json:"solvable"`
	Program  string `json:"program,omitempty"`
	Commands int    `json:"commands,omitempty"`
	Score    int    `json:"score,omitempty"`
	Explored int    `json:"explored,omitempty"`
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Report size, rules and best solution of every level",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "levels-dir",
				Usage:   "Directory with extra level files (built-in levels are always loaded)",
				Sources: cli.EnvVars("STARTIE_LEVELS_DIR"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print reports as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			levels, err := config.NewManager(afero.NewOsFs(), cmd.String("levels-dir"))
			if err != nil {
				return err
			}
			reports, err := analyzeAll(levels, cmd.Args().Slice())
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			writeReports(os.Stdout, reports)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Crit("analyze failed", "err", err)
		os.Exit(1)
	}
}

// analyzeAll reports the named levels, or every level when ids is empty
func analyzeAll(levels *config.Manager, ids []string) ([]Report, error) {
	var list []*engine.Level
	if len(ids) == 0 {
		all, err := levels.ListLevels()
		if err != nil {
			return nil, err
		}
		list = all
	}
	for _, id := range ids {
		level, err := levels.LoadLevel(id)
		if err != nil {
			return nil, err
		}
		list = append(list, level)
	}

	reports := make([]Report, 0, len(list))
	for _, level := range list {
		reports = append(reports, analyzeLevel(level))
	}
	return reports, nil
}

func analyzeLevel(level *engine.Level) Report {
	r := Report{
		ID:        level.ID,
		Name:      level.Name,
		Number:    level.Number,
		Width:     level.Width,
		Height:    level.Height,
		Floor:     level.CountTiles(engine.Floor),
		Holes:     level.CountTiles(engine.Hole),
		Lifted:    level.CountTiles(engine.Lifted),
		Void:      level.CountTiles(engine.Void),
		Laptop:    level.Laptop != nil,
		AllowJump: level.AllowJump,
	}

	sol, err := solver.Solve(level)
	if err != nil {
		log.Warn("level has no solution", "id", level.ID, "err", err)
		return r
	}
	r.Solvable = true
	r.Program = sol.Program
	r.Commands = sol.Commands
	r.Score = sol.Score
	r.Explored = sol.Explored
	return r
}

func writeReports(w io.Writer, reports []Report) {
	for _, r := range reports {
		fmt.Fprintf(w, "\n=== %s: %s ===\n", r.ID, r.Name)
		fmt.Fprintf(w, "Grid: %d x %d\n", r.Width, r.Height)
		fmt.Fprintf(w, "Tiles: %d floor, %d holes, %d lifted, %d void\n", r.Floor, r.Holes, r.Lifted, r.Void)
		fmt.Fprintf(w, "Laptop: %v  Jumps: %v\n", r.Laptop, r.AllowJump)

		if !r.Solvable {
			fmt.Fprintln(w, "UNSOLVABLE")
			continue
		}
		fmt.Fprintf(w, "Best: %d commands, score %d (%d states explored)\n", r.Commands, r.Score, r.Explored)
		for _, line := range strings.Split(r.Program, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
