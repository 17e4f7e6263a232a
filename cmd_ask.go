package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whiteboard/internal/app"
)

var askTimeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt to the assistant and print the reply",
	Long: `Send one prompt to the assistant against the canvas and print its reply.
With [sync] nats_url set the prompt acts on the shared document, otherwise on
a fresh canvas holding the welcome notes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		a := app.New(appOptions())
		if err := a.Startup(ctx); err != nil {
			return err
		}
		defer a.Shutdown(context.Background())

		sess, err := a.Sessions().Open()
		if err != nil {
			return fmt.Errorf("opening session: %w", err)
		}
		reply, err := a.Chat().Ask(ctx, sess, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := json.MarshalIndent(reply, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Println(reply.Message.Content)
		for _, el := range reply.Result.NewElements {
			fmt.Printf("  + %-8s %-10s %q\n", el.ID, el.Kind, el.DisplayText())
		}
		for _, el := range reply.Result.UpdatedElements {
			fmt.Printf("  ~ %-8s color=%s\n", el.ID, el.Data.Color)
		}
		if reply.Unavailable {
			return fmt.Errorf("assistant unavailable")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall time limit")
}
