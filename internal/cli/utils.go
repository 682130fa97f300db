package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/internal/services"
	"github.com/lewisedginton/conversation_store/pkg/logger"
	"github.com/lewisedginton/conversation_store/pkg/metrics"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata[metaLogger].(logger.Logger); ok {
			return log
		}
	}
	return logger.NewNopLogger()
}

// getConfig retrieves the configuration loaded by the Before hook.
func getConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	if ctx.App.Metadata != nil {
		if cfg, ok := ctx.App.Metadata[metaConfig].(*appconfig.AppConfig); ok {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("configuration not loaded")
}

// withServices opens the configured backend, runs fn against the components
// built on it and closes the backend afterwards. Store metrics are recorded on
// a private registry unless disabled, so that commands count operations the
// same way the server does.
func withServices(ctx *cli.Context, fn func(svc *services.Services) error) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	log := getLogger(ctx)

	var m *metrics.Metrics
	if !cfg.Metrics.Disabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace, false, log)
	}

	svc, err := services.Open(ctx.Context, cfg, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("Failed to close storage", logger.ErrorField(err))
		}
	}()

	return fn(svc)
}

// parseJSONFlag decodes a JSON object flag. An unset flag yields nil.
func parseJSONFlag(ctx *cli.Context, name string) (map[string]any, error) {
	raw := ctx.String(name)
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, cli.Exit(fmt.Sprintf("--%s must be a JSON object: %v", name, err), 2)
	}
	return out, nil
}

// requireArgs returns the first n positional arguments or a usage error.
func requireArgs(ctx *cli.Context, names ...string) ([]string, error) {
	if ctx.NArg() != len(names) {
		return nil, cli.Exit(fmt.Sprintf("usage: %s %s", ctx.Command.HelpName, argList(names)), 2)
	}
	return ctx.Args().Slice(), nil
}

func argList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "<" + n + ">"
	}
	return strings.Join(parts, " ")
}

// printJSON writes v as indented JSON to the app writer.
func printJSON(ctx *cli.Context, v any) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
