// Command counter serves the shared click count for the wall.
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

	"github.com/spf13/cobra"

	"github.com/pefman/break-the-wall/internal/config"
	"github.com/pefman/break-the-wall/internal/counter"
	"github.com/pefman/break-the-wall/internal/events"
	"github.com/pefman/break-the-wall/internal/logging"
	"github.com/pefman/break-the-wall/internal/store"
)

var cfg config.Counter

var rootCmd = &cobra.Command{
	Use:          "counter",
	Short:        "Shared click counter for Break the Wall",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              run,
}

func init() {
	config.Defaults(&cfg)
	f := rootCmd.Flags()
	f.StringVar(&cfg.CounterPort, "port", cfg.CounterPort, "listen port or address (overrides PORT)")
	f.StringVar(&cfg.Store, "store", cfg.Store, "counter backend: memory, sqlite or redis")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "database file for the sqlite backend")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address or URL for the redis backend")
	f.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "publish click events to this NATS server")
	f.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "increments per second per client (0 disables)")
	f.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "increment burst per client")
	f.StringVar(&cfg.Level, "log-level", cfg.Level, "log level")
	f.StringVar(&cfg.Format, "log-format", cfg.Format, "log format: text or json")
}

// loadConfig reads the environment once the command line is parsed; flags
// given explicitly win over it, PORT included.
func loadConfig(cmd *cobra.Command, args []string) error {
	err := config.Reload(cmd.Flags(), func() error {
		c, err := config.LoadCounter()
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

	st, err := store.Open(store.Options{
		Driver:     cfg.Store,
		SQLitePath: cfg.SQLitePath,
		RedisAddr:  cfg.RedisAddr,
		RedisKey:   cfg.RedisKey,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var pub events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		pub = np
	}
	defer pub.Close()

	srv := counter.NewServer(st, pub, log, counter.Options{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv.StartMaintenance(ctx, 10*time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("store", cfg.Store).Infof("counter listening on %s", httpServer.Addr)
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
