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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/audit"
	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/metrics"
	"github.com/dkeye/Meet/internal/adapters/persistence/gormstore"
	"github.com/dkeye/Meet/internal/adapters/persistence/memory"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	wssignal "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
)

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

type closer func()

func openStore(cfg *config.Config) (core.Store, closer, error) {
	if cfg.Database.Driver == "memory" {
		return memory.New(), func() {}, nil
	}
	s, err := gormstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}, nil
}

// openAudit fans out to the store plus any external sink that is configured.
// An unreachable external sink is logged and skipped.
func openAudit(ctx context.Context, cfg *config.Config, store core.Store) (core.AuditSink, closer) {
	sinks := []core.AuditSink{store}
	var closers []closer

	if uri := cfg.Audit.Mongo.URI; uri != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		m, err := audit.DialMongo(dialCtx, uri, cfg.Audit.Mongo.Database)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("mongo audit sink disabled")
		} else {
			sinks = append(sinks, m)
			closers = append(closers, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := m.Close(closeCtx); err != nil {
					log.Error().Err(err).Msg("close mongo")
				}
			})
		}
	}

	if uri := cfg.Audit.AMQP.URI; uri != "" {
		a, err := audit.DialAMQP(uri, cfg.Audit.AMQP.Exchange)
		if err != nil {
			log.Error().Err(err).Msg("amqp audit sink disabled")
		} else {
			sinks = append(sinks, a)
			closers = append(closers, func() {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("close amqp")
				}
			})
		}
	}

	fan := audit.NewFanout(sinks...)
	log.Info().Int("sinks", fan.Len()).Msg("audit ready")
	return fan, func() {
		for _, c := range closers {
			c()
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}
	defer closeStore()

	sink, closeAudit := openAudit(ctx, cfg, store)
	defer closeAudit()

	o := orch.New(store, sink, nil)
	prom := metrics.New(o.Registry)
	o.Metrics = prom

	ctl := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		Rate:           cfg.Signal.Rate,
		Burst:          cfg.Signal.Burst,
		AllowedOrigins: cfg.CORS.Origins,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:       o,
		Store:      store,
		Signal:     ctl,
		Metrics:    prom.Handler(),
		ICEServers: rtc.ICEServers(cfg.ICE.Servers),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Meet server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Sockets are hijacked, so Shutdown does not wait for them. Their
	// disconnects must finish before the store and audit sinks close.
	if err := ctl.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sessions still open at shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
