package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/bepaste/internal/message"
)

func newShortcutCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "shortcut [accelerator]",
		Short: "Show or change the stored global hotkey",
		Long: `Without an argument prints the hotkey the history window should be bound
to. With one, stores it, e.g.:

  bepaste shortcut CommandOrControl+Shift+V`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runShortcut(cmd, v, args) },
	}
	addClientFlags(cmd)
	return cmd
}

func runShortcut(cmd *cobra.Command, v *viper.Viper, args []string) error {
	client, closeConn, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	var resp *message.ShortcutResponse
	if len(args) == 0 {
		resp, err = client.GetShortcut(ctx, &message.GetShortcutRequest{})
	} else {
		resp, err = client.SetShortcut(ctx, &message.SetShortcutRequest{Shortcut: args[0]})
	}
	if err != nil {
		return fmt.Errorf("shortcut: %w", err)
	}
	fmt.Println(resp.Shortcut)
	return nil
}
