package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/bepaste/internal/message"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print history changes as they happen",
		Long: `Streams history-changed events from the daemon until interrupted. Each
event carries the full history; the text output shows the newest entry.
With --json every event is printed as one JSON line.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd, v) },
	}
	cmd.Flags().Bool("json", false, "print one JSON object per event")
	addClientFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	client, closeConn, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stream, err := client.Watch(ctx, &message.WatchRequest{})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	jsonOut := v.GetBool("json")
	enc := json.NewEncoder(os.Stdout)
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		if jsonOut {
			if err := enc.Encode(ev); err != nil {
				return err
			}
			continue
		}
		printEvent(ev)
	}
}

func printEvent(ev *message.WatchResponse) {
	if len(ev.Entries) == 0 {
		fmt.Printf("%-9s history empty\n", ev.Reason)
		return
	}
	e := ev.Entries[0]
	fmt.Printf("%-9s %d entries, newest %d %s %s\n", ev.Reason, len(ev.Entries), e.ID, e.Type, preview(e, 50))
}
