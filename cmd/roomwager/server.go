package main

import (
	"context"
	"fmt"
	"net"
	"time"

	rand "math/rand/v2"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/roomwager/cmd/roomwager/shared"
	"github.com/lox/roomwager/internal/auth"
	"github.com/lox/roomwager/internal/config"
	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/randutil"
	"github.com/lox/roomwager/internal/server"
)

// ServerCmd runs the websocket gateway and game engine
type ServerCmd struct {
	Addr    string `kong:"help='Server address (overrides the config file)'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
	LogJSON bool   `kong:"name='log-json',help='Emit structured JSON logs'"`
	Seed    *int64 `kong:"help='Deterministic RNG seed for the server (optional)'"`
}

func (c *ServerCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", cli.Config, err)
	}

	level := shared.ParseLevel(cfg.Server.LogLevel, c.Debug)
	logger := shared.SetupLogger(level)
	if c.LogJSON {
		logger = shared.SetupStructuredLogger(level)
	}

	var rng *rand.Rand
	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		seed = time.Now().UnixNano()
		logger.Info().Int64("seed", seed).Msg("Using random seed")
	}
	rng = randutil.New(seed)

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	clock := quartz.NewReal()
	hub := server.NewHub(logger, clock)
	opts := []engine.Option{
		engine.WithConfig(cfg.Engine),
		engine.WithClock(clock),
		engine.WithRand(rng),
	}
	if st.recorder != nil {
		opts = append(opts, engine.WithRecorder(st.recorder))
	}
	eng := engine.New(logger, st.ledger, hub, opts...)

	var srvOpts []server.Option
	if cfg.Server.AdminUser != "" {
		srvOpts = append(srvOpts, server.WithAdmin(cfg.Server.AdminUser, cfg.Server.AdminPassword))
	} else {
		logger.Warn().Msg("No admin credentials configured, the admin API and privileged roles are open")
	}
	if cfg.Server.AuthURL != "" {
		srvOpts = append(srvOpts, server.WithValidator(auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)))
		logger.Info().Str("url", cfg.Server.AuthURL).Msg("Resolving identities through auth service")
	}
	srv := server.New(logger, eng, hub, srvOpts...)

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Address, err)
	}

	logEngineConfig(logger, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Close(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Engine did not close cleanly")
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func logEngineConfig(logger zerolog.Logger, cfg *config.Config) {
	e := cfg.Engine
	logger.Info().
		Str("address", cfg.Server.Address).
		Str("default_variant", string(e.DefaultVariant)).
		Bool("enabled_by_default", e.EnabledByDefault).
		Dur("lobby", e.LobbyDuration).
		Dur("round", e.RoundDuration).
		Dur("betting", e.BettingDuration).
		Int64("min_stake", e.MinStake).
		Int64("max_stake", e.MaxStake).
		Int("max_participants", e.MaxParticipants).
		Str("house_cut", e.HouseCut.String()).
		Msg("Starting roomwager server")
}
