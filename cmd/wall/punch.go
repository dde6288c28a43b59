package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pefman/break-the-wall/internal/api"
	"github.com/pefman/break-the-wall/internal/config"
	"github.com/pefman/break-the-wall/internal/gate"
	"github.com/pefman/break-the-wall/internal/logging"
	"github.com/pefman/break-the-wall/internal/wall"
	"github.com/pefman/break-the-wall/internal/widget"
)

var gateFile string

var punchCmd = &cobra.Command{
	Use:   "punch",
	Short: "Spend today's punch from the terminal",
	Long: `Punch the wall once for this machine. The daily marker lives in a small
JSON file instead of a browser cookie.`,
	RunE: runPunch,
}

func init() {
	punchCmd.Flags().StringVar(&gateFile, "gate-file", defaultGateFile(), "file holding the last punch date")
	rootCmd.AddCommand(punchCmd)
}

func defaultGateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "wall-gate.json"
	}
	return filepath.Join(dir, "break-the-wall", "gate.json")
}

func runPunch(cmd *cobra.Command, args []string) error {
	log := logging.New(cfg.Level, cfg.Format)
	wallCfg, err := config.LoadStages(cfg.StagesFile)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	timeout := cfg.CounterTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client := api.NewClientWithConfig(api.Config{BaseURL: cfg.CounterURL, Timeout: cfg.CounterTimeout})
	st := wall.New(wallCfg, client, gate.NewFile(gateFile),
		wall.WithLocation(loc),
		wall.WithLogger(log),
	)
	if err := st.Load(ctx); err != nil {
		log.WithError(err).Warn("could not fetch the shared count")
	}
	res := st.AttemptClick(ctx)
	st.Animation().Stop()

	snap := st.Snapshot()
	out := cmd.OutOrStdout()
	if res.Outcome == wall.OutcomeAccepted {
		fmt.Fprintln(out, "💥 Punch landed!")
	}
	fmt.Fprintln(out, widget.StatusMessage(snap.Status))
	fmt.Fprintf(out, "%d / %d (stage %d, %s)\n", snap.Clicks, snap.Max, snap.Stage, snap.Asset)
	return nil
}
