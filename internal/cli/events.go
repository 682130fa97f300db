package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/urfave/cli/v2"
	"google.golang.org/adk/session"

	"github.com/lewisedginton/conversation_store/internal/adk_bridge"
	"github.com/lewisedginton/conversation_store/internal/conversation"
	"github.com/lewisedginton/conversation_store/internal/services"
	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// EventsCommand returns the commands that record completed turns.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Record completed turns into stored sessions",
		Subcommands: []*cli.Command{
			{
				Name:      "append",
				Usage:     "Append one event to an existing session",
				ArgsUsage: "<app> <user> <session>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "author", Value: conversation.RoleUser, Usage: "Event author; \"user\" for the user's own turns"},
					&cli.StringFlag{Name: "text", Usage: "Text of the turn"},
					&cli.StringFlag{Name: "state-delta", Usage: "State changes as a JSON object"},
				},
				Action: eventsAppendAction,
			},
			{
				Name:      "import",
				Usage:     "Append JSON lines of events read from stdin, creating the session if needed",
				ArgsUsage: "<app> <user> [session]",
				Action:    eventsImportAction,
			},
		},
	}
}

func eventsAppendAction(ctx *cli.Context) error {
	args, err := requireArgs(ctx, "app", "user", "session")
	if err != nil {
		return err
	}
	delta, err := parseJSONFlag(ctx, "state-delta")
	if err != nil {
		return err
	}
	event, err := adk_bridge.EventInput{
		Author:     ctx.String("author"),
		Text:       ctx.String("text"),
		StateDelta: delta,
	}.Event("")
	if err != nil {
		return err
	}

	return withServices(ctx, func(svc *services.Services) error {
		resp, err := svc.Sessions.Get(ctx.Context, &session.GetRequest{
			AppName:         args[0],
			UserID:          args[1],
			SessionID:       args[2],
			NumRecentEvents: 1,
		})
		if err != nil {
			return err
		}
		if err := svc.Sessions.AppendEvent(ctx.Context, resp.Session, event); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return printJSON(ctx, adk_bridge.NewEventView(event))
	})
}

type importView struct {
	SessionID string `json:"sessionId"`
	Recorded  int    `json:"recorded"`
}

func eventsImportAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 || ctx.NArg() > 3 {
		return cli.Exit("usage: "+ctx.Command.HelpName+" <app> <user> [session]", 2)
	}
	appName, userID, sessionID := ctx.Args().Get(0), ctx.Args().Get(1), ctx.Args().Get(2)

	return withServices(ctx, func(svc *services.Services) error {
		sess, err := svc.Store.GetOrCreate(ctx.Context, appName, userID, sessionID, nil)
		if err != nil {
			return err
		}
		n, err := svc.Store.RecordEvents(ctx.Context, sess, readEvents(ctx.App.Reader))
		if err != nil {
			return fmt.Errorf("failed after %d events: %w", n, err)
		}
		getLogger(ctx).Info("Events imported",
			logger.AppNameField(appName),
			logger.UserIDField(userID),
			logger.SessionIDField(sess.ID),
			logger.IntField("events", n))
		return printJSON(ctx, importView{SessionID: sess.ID, Recorded: n})
	})
}

// readEvents yields one event per JSON value in r. Decoding stops at the
// first malformed value.
func readEvents(r io.Reader) iter.Seq2[*conversation.Event, error] {
	return func(yield func(*conversation.Event, error) bool) {
		dec := json.NewDecoder(bufio.NewReader(r))
		dec.UseNumber()
		for {
			var in adk_bridge.EventInput
			err := dec.Decode(&in)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: malformed event: %v", conversation.ErrInvalidArgument, err))
				return
			}
			event, err := in.Stored()
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}
