package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/api"
	"github.com/vestflow-xyz/go-vestflow/config"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/journal"
	"github.com/vestflow-xyz/go-vestflow/metrics"
	"github.com/vestflow-xyz/go-vestflow/store"
	"github.com/vestflow-xyz/go-vestflow/token"
)

// primaryInstanceID is the snapshot key the daemon persists its single
// engine instance under.
const primaryInstanceID = "primary"

const snapshotInterval = 30 * time.Second

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	// Asset ledger bootstrap: mint the configured supply to the treasury
	// and fund the engine's custodial account from it.
	ledger := token.NewMemoryLedger()
	supply, err := uint256.FromDecimal(cfg.Asset.InitialSupply)
	if err != nil {
		return fmt.Errorf("invalid initial supply: %w", err)
	}
	if err := ledger.Mint(cfg.Asset.Treasury, supply); err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithID(primaryInstanceID),
		engine.WithLogger(log),
	}

	var rec *journal.Writer
	if cfg.JournalPath != "" {
		if rec, err = journal.OpenFile(cfg.JournalPath); err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, engine.WithJournal(rec))
	}

	var m *metrics.Metrics
	reg := prometheus.NewRegistry()
	if cfg.MetricsBind != "" {
		m = metrics.New(reg)
		opts = append(opts, engine.WithMetrics(m))
	}

	eng := engine.New(ledger, "vesting:"+primaryInstanceID, cfg.Owner, opts...)

	// Engine funding: the whole treasury backs this instance.
	if err := ledger.Transfer(cfg.Asset.Treasury, eng.Account(), supply); err != nil {
		return err
	}

	var st store.Store
	if cfg.DatabasePath != "" {
		if st, err = store.NewSQLiteStore(cfg.DatabasePath); err != nil {
			return err
		}
		defer st.Close()

		snap, err := st.Load(context.Background(), primaryInstanceID)
		switch {
		case err == nil:
			if err := eng.Restore(snap); err != nil {
				return fmt.Errorf("restoring engine state: %w", err)
			}
			log.Info().Int("schedules", len(snap.Schedules)).Msg("engine state restored")
		case err == store.ErrSnapshotNotFound:
			// Fresh database.
		default:
			return err
		}
	}

	keys := make(map[string]access.Caller, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k.Key] = k.Caller()
	}

	server := api.New(eng,
		api.WithAPIKeys(keys),
		api.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	go func() {
		log.Info().Str("bind", cfg.Bind).Msg("serving vesting API")
		errCh <- server.Listen(cfg.Bind)
	}()

	if cfg.MetricsBind != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Info().Str("bind", cfg.MetricsBind).Msg("serving metrics")
			errCh <- http.ListenAndServe(cfg.MetricsBind, mux)
		}()
	}

	if st != nil {
		go snapshotLoop(ctx, log, eng, st)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if st != nil {
		if err := st.Save(context.Background(), eng.Snapshot()); err != nil {
			log.Error().Err(err).Msg("final snapshot failed")
		}
	}
	return server.Shutdown()
}

// snapshotLoop periodically persists the engine state.
func snapshotLoop(ctx context.Context, log zerolog.Logger, eng *engine.Engine, st store.Store) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.Save(ctx, eng.Snapshot()); err != nil {
				log.Error().Err(err).Msg("snapshot failed")
			}
		}
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}
