package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/bepaste/internal/message"
)

func newHistoryCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the clipboard history, most recent first",
		Long: `Lists the clipboard history kept by the running daemon.

Use --search to filter text entries (case-insensitive) and --json for the raw
{id, type, content, timestamp} records, including full image data URIs.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runHistory(cmd, v) },
	}

	f := cmd.Flags()
	f.String("search", "", "only entries whose text contains this")
	f.Int("limit", 0, "show at most this many entries (0 = all)")
	f.Bool("json", false, "output raw JSON")
	addClientFlags(cmd)

	return cmd
}

func runHistory(cmd *cobra.Command, v *viper.Viper) error {
	client, closeConn, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	resp, err := client.GetHistory(ctx, &message.GetHistoryRequest{
		Query: v.GetString("search"),
		Limit: v.GetInt("limit"),
	})
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if v.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Entries)
	}

	if len(resp.Entries) == 0 {
		fmt.Println("History is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tTYPE\tCAPTURED\tCONTENT\n")
	for _, e := range resp.Entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Type, humanize.Time(e.Timestamp), preview(e, 60))
	}
	return tw.Flush()
}

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Put a history entry back on the clipboard",
		Long: `Writes the entry with the given id (see "bepaste history") back to the
system clipboard. The entry keeps its place in the history.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runCopy(cmd, v, args[0]) },
	}
	addClientFlags(cmd)
	return cmd
}

func runCopy(cmd *cobra.Command, v *viper.Viper, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", arg)
	}
	client, closeConn, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	resp, err := client.CopyToClipboard(ctx, &message.CopyToClipboardRequest{ID: id})
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	fmt.Printf("copied %s\n", preview(resp.Entry, 60))
	return nil
}

func newClearCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete the whole clipboard history",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runClear(cmd, v) },
	}
	addClientFlags(cmd)
	return cmd
}

func runClear(cmd *cobra.Command, v *viper.Viper) error {
	client, closeConn, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	if _, err := client.ClearHistory(ctx, &message.ClearHistoryRequest{}); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	fmt.Println("History cleared.")
	return nil
}
