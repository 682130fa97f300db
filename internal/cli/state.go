package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/conversation_store/internal/services"
)

// StateCommand returns the commands for app and user scoped state.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "App and user scoped state shared across sessions",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the app and user scoped state",
				ArgsUsage: "<app> <user>",
				Action:    stateGetAction,
			},
			{
				Name:      "set",
				Usage:     "Merge entries into the app or user scoped state",
				ArgsUsage: "<app> <user>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "app", Usage: "App scoped entries as a JSON object"},
					&cli.StringFlag{Name: "user", Usage: "User scoped entries as a JSON object"},
				},
				Action: stateSetAction,
			},
		},
	}
}

type stateView struct {
	App  map[string]any `json:"app"`
	User map[string]any `json:"user"`
}

func stateGetAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user")
	if err != nil {
		return err
	}
	return withServices(ctx, func(svc *services.Services) error {
		return printScopedState(ctx, svc, args[0], args[1])
	})
}

func stateSetAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user")
	if err != nil {
		return err
	}
	app, err := parseJSONFlag(ctx, "app")
	if err != nil {
		return err
	}
	user, err := parseJSONFlag(ctx, "user")
	if err != nil {
		return err
	}
	if len(app) == 0 && len(user) == 0 {
		return cli.Exit("nothing to set: pass --app or --user", 2)
	}
	return withServices(ctx, func(svc *services.Services) error {
		if err := svc.Store.MergeScopedState(ctx.Context, args[0], args[1], app, user); err != nil {
			return err
		}
		return printScopedState(ctx, svc, args[0], args[1])
	})
}

func printScopedState(ctx *cli.Context, svc *services.Services, appName, userID string) error {
	app, user, err := svc.Store.ScopedState(ctx.Context, appName, userID)
	if err != nil {
		return err
	}
	return printJSON(ctx, stateView{App: app, User: user})
}
