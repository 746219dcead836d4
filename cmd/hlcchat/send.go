package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/upload"
)

var sendCommand = &cli.Command{
	Name:   "send",
	Usage:  "Send a single message without opening an interactive session",
	Before: prepareApp,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "kind",
			Usage:    "Chat surface: support, direct or group",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "conversation",
			Aliases:  []string{"c"},
			Usage:    "Conversation id",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "text",
			Usage: "Message body",
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "Path of a file to attach",
		},
	},
	Action: runSend,
}

func runSend(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := getLogger(ctx)
	client := getClient(ctx)
	kind := chatsync.ConversationKind(ctx.String("kind"))
	if !kind.Valid() {
		return fmt.Errorf("invalid --kind %q", ctx.String("kind"))
	}

	var att *chatsync.Attachment
	if path := ctx.String("file"); path != "" {
		uploader := upload.New(client, upload.Limits{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
		}, log)
		var err error
		att, err = uploader.Upload(ctx.Context, path)
		if err != nil {
			return err
		}
	}

	// A one-shot send still goes through the pipeline so the compose
	// guards and reconciliation semantics match the app.
	store := chatsync.NewMessageStore(ctx.String("conversation"))
	defer store.Close()
	pipeline := chatsync.NewSendPipeline(store, client, kind, chatsync.UserIdentity{
		ID:          cfg.User.ID,
		DisplayName: cfg.User.DisplayName,
	}, log)

	res, err := pipeline.Send(ctx.Context, ctx.String("text"), att)
	if err != nil {
		return err
	}
	fmt.Printf("delivered %s at %s\n", res.Message.ID, res.Message.CreatedAt.Local().Format("15:04:05"))
	return nil
}
