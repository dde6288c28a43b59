// Command wall serves the Break the Wall page and forwards punches to the
// counter service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/pefman/break-the-wall/internal/api"
	"github.com/pefman/break-the-wall/internal/config"
	"github.com/pefman/break-the-wall/internal/events"
	"github.com/pefman/break-the-wall/internal/logging"
	"github.com/pefman/break-the-wall/internal/widget"
)

var cfg config.Wall

var rootCmd = &cobra.Command{
	Use:          "wall",
	Short:        "Break the Wall widget server",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              run,
}

func init() {
	config.Defaults(&cfg)
	// Persistent so the punch subcommand sees the same counter and stage settings.
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.WallPort, "port", cfg.WallPort, "listen port or address (overrides PORT)")
	f.StringVar(&cfg.CounterURL, "counter-url", cfg.CounterURL, "base URL of the counter service")
	f.DurationVar(&cfg.CounterTimeout, "counter-timeout", cfg.CounterTimeout, "per-call timeout for the counter service (0 for none)")
	f.StringVar(&cfg.StagesFile, "stages", cfg.StagesFile, "YAML manifest with max and stage images")
	f.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory holding the stage images")
	f.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "fallback timezone for the daily punch")
	f.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "mark cookies Secure")
	f.StringVar(&cfg.RefreshSpec, "refresh", cfg.RefreshSpec, "cron spec for polling the shared count (empty disables)")
	f.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "follow click events from this NATS server")
	f.StringVar(&cfg.Level, "log-level", cfg.Level, "log level")
	f.StringVar(&cfg.Format, "log-format", cfg.Format, "log format: text or json")
}

// loadConfig reads the environment once the command line is parsed; flags
// given explicitly win over it, PORT included.
func loadConfig(cmd *cobra.Command, args []string) error {
	err := config.Reload(cmd.Flags(), func() error {
		c, err := config.LoadWall()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = ""
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New(cfg.Level, cfg.Format)

	wallCfg, err := config.LoadStages(cfg.StagesFile)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	client := api.NewClientWithConfig(api.Config{BaseURL: cfg.CounterURL, Timeout: cfg.CounterTimeout})

	srv := widget.NewServer(client, log, widget.Options{
		Wall:          wallCfg,
		Location:      loc,
		AssetsDir:     cfg.AssetsDir,
		SecureCookies: cfg.SecureCookies,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RefreshSpec != "" {
		c, err := srv.StartRefresh(cfg.RefreshSpec)
		if err != nil {
			return fmt.Errorf("refresh schedule %q: %w", cfg.RefreshSpec, err)
		}
		defer c.Stop()
	}

	if cfg.NATSURL != "" {
		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()
		ch, cancel, err := sub.SubscribeClicks()
		if err != nil {
			return err
		}
		defer cancel()
		go srv.Follow(ctx, ch)
		log.WithField("nats", cfg.NATSURL).Info("following click events")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]any{"counter": client.BaseURL(), "max": wallCfg.Max}).
			Infof("wall listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	return nil
}
