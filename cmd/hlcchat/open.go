package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/config"
	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/upload"
)

var openCommand = &cli.Command{
	Name:   "open",
	Usage:  "Open a conversation: stream new messages, send typed lines",
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
	},
	Action: runOpen,
}

func runOpen(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	log := getLogger(ctx)
	kind := chatsync.ConversationKind(ctx.String("kind"))

	session, err := chatsync.OpenSession(ctx.Context, getClient(ctx), chatsync.SessionConfig{
		Kind:           kind,
		ConversationID: ctx.String("conversation"),
		Self: chatsync.UserIdentity{
			ID:          cfg.User.ID,
			DisplayName: cfg.User.DisplayName,
		},
		PollInterval: cfg.PollInterval(kind),
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	// Retune the live session when the config file changes.
	if path := ctx.String("config"); path != "" {
		watcher, werr := config.Watch(path, log, func(updated *config.Config) {
			session.SetPollInterval(updated.PollInterval(kind))
		})
		if werr != nil {
			log.Warn().Err(werr).Msg("Config watch unavailable, poll interval fixed for this session")
		} else {
			defer watcher.Close()
		}
	}

	uploader := upload.New(getClient(ctx), upload.Limits{
		MaxBytes:     cfg.Upload.MaxBytes,
		AllowedTypes: cfg.Upload.AllowedTypes,
	}, log)

	for _, msg := range session.Messages() {
		printMessage(msg)
	}

	// Render loop: print whatever the poll loop merged since the last pass.
	stopRender := make(chan struct{})
	go func() {
		seen := map[string]bool{}
		for _, msg := range session.Messages() {
			seen[msg.ID] = true
		}
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopRender:
				return
			case <-ticker.C:
				for _, msg := range session.Messages() {
					if !seen[msg.ID] {
						seen[msg.ID] = true
						printMessage(msg)
					}
				}
			}
		}
	}()
	defer close(stopRender)

	fmt.Println("-- type a message and press enter; /file <path> to attach; /quit to exit --")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/file "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
			att, err := uploader.Upload(ctx.Context, path)
			if err != nil {
				fmt.Printf("!! upload failed: %v\n", err)
				continue
			}
			if _, err := session.SendWithAttachment(ctx.Context, att.DisplayName, att); err != nil {
				fmt.Printf("!! send failed, not delivered: %v\n", err)
			}
		default:
			if _, err := session.Send(ctx.Context, line); err != nil {
				// The compose input stays with the user; just report.
				fmt.Printf("!! send failed, not delivered: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func printMessage(msg chatsync.Message) {
	name := msg.SenderDisplayName
	if name == "" {
		name = msg.SenderID
	}
	suffix := ""
	if msg.Pending() {
		suffix = " (sending…)"
	}
	if msg.Attachment != nil {
		suffix += fmt.Sprintf(" [%s: %s]", msg.Attachment.Kind, msg.Attachment.URL)
	}
	fmt.Printf("[%s] %s: %s%s\n", msg.CreatedAt.Local().Format("15:04:05"), name, msg.Content, suffix)
}
