package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/services"
	"github.com/lewisedginton/conversation_store/internal/session_manager"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// SessionsCommand returns the session inspection and maintenance commands.
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Create, inspect and delete stored sessions",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a session; app: and user: prefixed state keys go to the shared scopes",
				ArgsUsage: "<app> <user> [session]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "state", Usage: "Initial state as a JSON object"},
				},
				Action: sessionsCreateAction,
			},
			{
				Name:      "list",
				Usage:     "List the sessions of a user",
				ArgsUsage: "<app> <user>",
				Action:    sessionsListAction,
			},
			{
				Name:      "get",
				Usage:     "Show one session with its state and events",
				ArgsUsage: "<app> <user> <session>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "recent", Usage: "Only the last N events (0 for all)"},
					&cli.TimestampFlag{Name: "after", Layout: time.RFC3339, Usage: "Only events strictly after this time"},
				},
				Action: sessionsGetAction,
			},
			{
				Name:      "events",
				Usage:     "List every event of a session in time order",
				ArgsUsage: "<app> <user> <session>",
				Action:    sessionsEventsAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session and its events",
				ArgsUsage: "<app> <user> <session>",
				Action:    sessionsDeleteAction,
			},
		},
	}
}

func sessionsCreateAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 || ctx.NArg() > 3 {
		return cli.Exit("usage: "+ctx.Command.HelpName+" <app> <user> [session]", 2)
	}
	state, err := parseJSONFlag(ctx, "state")
	if err != nil {
		return err
	}
	req := &session.CreateRequest{
		AppName:   ctx.Args().Get(0),
		UserID:    ctx.Args().Get(1),
		SessionID: ctx.Args().Get(2),
		State:     state,
	}
	return withServices(ctx, func(svc *services.Services) error {
		resp, err := svc.Sessions.Create(ctx.Context, req)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		getLogger(ctx).Info("Session created",
			logger.AppNameField(req.AppName),
			logger.UserIDField(req.UserID),
			logger.SessionIDField(resp.Session.ID()))
		return printJSON(ctx, adk_bridge.NewSessionView(resp.Session))
	})
}

func sessionsListAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user")
	if err != nil {
		return err
	}
	return withServices(ctx, func(svc *services.Services) error {
		sessions, err := svc.Store.ListSessions(ctx.Context, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(ctx, sessions)
	})
}

func sessionsGetAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user", "session")
	if err != nil {
		return err
	}
	req := session_manager.GetRequest{
		AppName:         args[0],
		UserID:          args[1],
		SessionID:       args[2],
		NumRecentEvents: ctx.Int("recent"),
	}
	if after := ctx.Timestamp("after"); after != nil {
		req.After = *after
	}
	return withServices(ctx, func(svc *services.Services) error {
		sess, err := svc.Store.GetSession(ctx.Context, req)
		if err != nil {
			return err
		}
		return printJSON(ctx, newSessionView(sess))
	})
}

func sessionsEventsAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user", "session")
	if err != nil {
		return err
	}
	return withServices(ctx, func(svc *services.Services) error {
		events, err := svc.Store.ListEvents(ctx.Context, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		views := make([]eventView, 0, len(events))
		for _, e := range events {
			views = append(views, newEventView(e))
		}
		return printJSON(ctx, views)
	})
}

func sessionsDeleteAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user", "session")
	if err != nil {
		return err
	}
	return withServices(ctx, func(svc *services.Services) error {
		if err := svc.Store.DeleteSession(ctx.Context, args[0], args[1], args[2]); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		getLogger(ctx).Info("Session deleted",
			logger.AppNameField(args[0]),
			logger.UserIDField(args[1]),
			logger.SessionIDField(args[2]))
		return printJSON(ctx, map[string]any{"deleted": args[2]})
	})
}
