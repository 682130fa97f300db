package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/conversation_store/internal/services"
)

// PrefsCommand returns the user preference commands.
func PrefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "User preferences",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the stored preferences of a user",
				ArgsUsage: "<user>",
				Action:    prefsGetAction,
			},
		},
	}
}

type prefsView struct {
	UserID      string         `json:"userId"`
	Found       bool           `json:"found"`
	Preferences map[string]any `json:"preferences"`
}

func prefsGetAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "user")
	if err != nil {
		return err
	}
	return withServices(ctx, func(svc *services.Services) error {
		prefs, found, err := svc.Preferences.Get(ctx.Context, args[0])
		if err != nil {
			return err
		}
		if prefs == nil {
			prefs = map[string]any{}
		}
		return printJSON(ctx, prefsView{UserID: args[0], Found: found, Preferences: prefs})
	})
}
