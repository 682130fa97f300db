package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/conversation_store/internal/server"
	"github.com/lewisedginton/conversation_store/internal/services"
	"github.com/lewisedginton/conversation_store/pkg/health"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
	"github.com/lewisedginton/conversation_store/pkg/utils"
)

// ServeCommand returns the command running the ops server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the conversation API with health and metrics endpoints",
		Action: serveAction,
	}
}

func serveAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	cfg.LogConfig(log)

	var m *metrics.Metrics
	if !cfg.Metrics.Disabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace, true, log)
	}

	svc, err := services.Open(ctx.Context, cfg, log, m)
	if err != nil {
		log.Error("Failed to open storage", logger.ErrorField(err))
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close storage", logger.ErrorField(err))
		}
	}()

	checker := health.New(
		health.WithTimeout(cfg.Health.Timeout),
		health.WithFailureThreshold(cfg.Health.FailureThreshold),
		health.WithLogger(log),
	)
	checker.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error { return nil }))
	checker.AddReadinessCheck(svc.Backend.Checks...)

	api := server.NewAPI(svc.Sessions, svc.Recall, svc.Preferences, log)
	srv := server.New(cfg, log, checker, m, server.WithAPI(api))
	errChan, closer, gracefulCloser := srv.Listen()

	sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := utils.WaitForError(sigCtx, utils.MergeErrorChans(errChan)); err != nil {
		log.Error("Fatal server error occurred", logger.ErrorField(err))
		closer()
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Shutting down")
	gracefulCloser()
	log.Info("Server exited gracefully")
	return nil
}
