package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/api"
	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/metrics"
	"github.com/AaronLay10/FNOLSimulator/internal/mqtt"
	"github.com/AaronLay10/FNOLSimulator/internal/simulator"
	"github.com/AaronLay10/FNOLSimulator/internal/storage/postgres"
	"github.com/AaronLay10/FNOLSimulator/internal/storage/redis"
	"github.com/AaronLay10/FNOLSimulator/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator console and API",
	Long: `Starts the simulator behind the HTTP API and websocket stream. MQTT
control, Postgres event log persistence and Redis snapshots are enabled from
the configuration or the MQTT_URL, PGHOST and REDIS_ADDR environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.HTTP.Port, _ = cmd.Flags().GetInt("port")
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		resume, _ := cmd.Flags().GetBool("resume")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger, resume)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Bool("resume", false, "Restore the latest run from Redis and Postgres before serving")
}

func serve(ctx context.Context, cfg *config.SimulatorConfig, logger *slog.Logger, resume bool) error {
	creds, err := config.ResolveCredentials()
	if err != nil {
		return err
	}

	sim, err := buildSimulator(cfg, clock.NewReal(), logger)
	if err != nil {
		return err
	}
	bus := sim.Bus()

	var srv *api.Server
	m := metrics.New(version.Version, func() int {
		if srv == nil {
			return 0
		}
		return srv.Clients()
	})
	bus.AddHook(m.Observe)

	srv = api.NewServer(sim, api.Options{
		Logger:        logger,
		Metrics:       m,
		Credentials:   creds,
		FrameInterval: cfg.FrameInterval(),
	})

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var closers []func()
	defer func() {
		cancel()
		wg.Wait()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	goRun := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, func() { pg.Close() })

		rec := postgres.NewRecorder(pg, logger, sim.CaseID, 512)
		bus.AddHook(rec.Hook)
		goRun(rec.Run)
		srv.AddCheck("postgres", pg.Ping, false)
	}

	var store *redis.Store
	if cfg.Redis.Enabled {
		ttl, err := cfg.RedisTTL()
		if err != nil {
			return err
		}
		password, err := config.ResolveSecret("REDIS_PASSWORD")
		if err != nil {
			return err
		}
		store = redis.New(cfg.Redis.Addr, password, cfg.Redis.DB, redis.WithTTL(ttl))
		closers = append(closers, func() { store.Close() })

		syncer := redis.NewSyncer(store, snapshotBuilder(sim), logger)
		bus.AddHook(syncer.Hook)
		goRun(syncer.Run)
		srv.AddCheck("redis", store.Ping, true)
	}

	if resume {
		if err := resumeLatest(ctx, sim, store, pg, logger); err != nil {
			logger.Warn("resume failed, starting fresh", "error", err)
		}
	}

	if cfg.MQTT.Enabled {
		client := mqtt.NewClient(cfg.MQTT.URL, cfg.MQTT.ClientID, logger)
		if err := client.Connect(); err != nil {
			logger.Warn("mqtt connect failed, retrying in background", "url", cfg.MQTT.URL, "error", err)
		}
		closers = append(closers, client.Disconnect)

		pub := mqtt.NewPublisher(client, cfg.MQTT.TopicPrefix, logger)
		goRun(func(ctx context.Context) { pub.Run(ctx, bus) })

		handler := mqtt.NewControlHandler(sim, logger)
		if err := handler.Subscribe(client, cfg.MQTT.TopicPrefix); err != nil {
			logger.Warn("mqtt control subscribe failed", "error", err)
		}
		srv.AddCheck("mqtt", func(context.Context) error {
			if !client.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}, true)
	}

	host, _ := os.Hostname()
	_ = bus.Emit("info", events.SystemStartup, "fnolsim starting", map[string]interface{}{
		"service":  "fnolsim",
		"version":  version.Version,
		"hostname": host,
		"pid":      os.Getpid(),
		"addr":     cfg.HTTPAddr(),
	})

	if cfg.Playback.AutoPlay && !resume {
		if err := sim.Play(); err != nil {
			logger.Warn("auto play failed", "error", err)
		}
	}

	err = srv.ListenAndServe(ctx, cfg.HTTPAddr(), &api.TLSConfig{
		CertFile: cfg.HTTP.TLSCert,
		KeyFile:  cfg.HTTP.TLSKey,
	})
	if err != nil {
		_ = bus.Emit("error", events.SystemError, "api server failed", map[string]interface{}{"error": err.Error()})
	}

	_ = bus.Emit("info", events.SystemShutdown, "fnolsim stopping", nil)
	return err
}

// snapshotBuilder returns the Redis snapshot of sim's current run, or nil
// between runs.
func snapshotBuilder(sim *simulator.Simulator) func() *redis.Snapshot {
	return func() *redis.Snapshot {
		st := sim.Status()
		if st.RunID == "" {
			return nil
		}
		return &redis.Snapshot{
			RunID:   st.RunID,
			CaseID:  sim.CaseID(),
			SavedAt: time.Now().UTC(),
			Status:  st,
			Frame:   sim.Render(),
		}
	}
}

// resumeLatest restores the most recently snapshotted run from its stored
// event log. The run comes back paused, or stopped if it had finished.
func resumeLatest(ctx context.Context, sim *simulator.Simulator, store *redis.Store, pg *postgres.Client, logger *slog.Logger) error {
	if store == nil || pg == nil {
		return errors.New("resume needs both redis and postgres enabled")
	}
	snap, err := store.Latest(ctx)
	if err != nil {
		return err
	}
	entries, err := pg.Entries(ctx, snap.RunID)
	if err != nil {
		return err
	}
	state, err := sim.Restore(snap.RunID, entries)
	if err != nil {
		return err
	}
	logger.Info("run restored",
		"run_id", snap.RunID,
		"stage_id", state.CurrentStageID,
		"transitions", state.Transitions,
		"complete", state.Complete,
	)
	return nil
}
