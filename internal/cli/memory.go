package cli

import (
	"strings"

	"github.com/urfave/cli/v2"
	"google.golang.org/adk/memory"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/services"
)

// MemoryCommand returns the memory search command.
func MemoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Keyword memory over stored events",
		Subcommands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Find text from past events that shares a keyword with the query",
				ArgsUsage: "<app> <user> <query...>",
				Action:    memorySearchAction,
			},
		},
	}
}

func memorySearchAction(ctx *cli.Context) error {
	if ctx.NArg() < 3 {
		return cli.Exit("usage: "+ctx.Command.HelpName+" <app> <user> <query...>", 2)
	}
	args := ctx.Args().Slice()
	appName, userID, query := args[0], args[1], strings.Join(args[2:], " ")

	return withServices(ctx, func(svc *services.Services) error {
		resp, err := svc.Recall.Search(ctx.Context, &memory.SearchRequest{
			AppName: appName,
			UserID:  userID,
			Query:   query,
		})
		if err != nil {
			return err
		}
		views := make([]adk_bridge.MemoryView, 0, len(resp.Memories))
		for _, m := range resp.Memories {
			views = append(views, adk_bridge.NewMemoryView(m))
		}
		return printJSON(ctx, views)
	})
}
