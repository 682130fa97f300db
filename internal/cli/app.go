// Package cli wires the convostore command line: the ops server and the
// operator commands that inspect and maintain stored conversations.
package cli

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/conversation_store/internal/config"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

const (
	metaLogger = "logger"
	metaConfig = "config"
)

// NewApp builds the convostore application. Logs go to stderr so that
// command output on stdout stays machine readable.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "convostore",
		Usage:   "Conversation session, event and memory store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides the config file",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: before,
		Commands: []*cli.Command{
			ServeCommand(),
			SessionsCommand(),
			EventsCommand(),
			StateCommand(),
			MemoryCommand(),
			PrefsCommand(),
		},
	}
}

func before(ctx *cli.Context) error {
	cfg, err := appconfig.Load(ctx.String("config-file"))
	if err != nil {
		return err
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}

	var out io.Writer = os.Stderr
	if ctx.App.ErrWriter != nil {
		out = ctx.App.ErrWriter
	}
	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Output:  out,
	})

	ctx.App.Metadata = map[string]interface{}{
		metaLogger: log,
		metaConfig: cfg,
	}
	return nil
}
