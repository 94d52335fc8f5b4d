package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/bepaste/internal/classify"
	"go.klb.dev/bepaste/internal/grpcservice"
	"go.klb.dev/bepaste/internal/ipc"
	"go.klb.dev/bepaste/internal/message"
	"go.klb.dev/bepaste/internal/tlsconf"
)

const rpcTimeout = 10 * time.Second

// connect reaches the daemon: over the IPC socket unless --server was given,
// otherwise over TCP (TLS keyed by --token when one is set).
func connect(cmd *cobra.Command, v *viper.Viper) (*grpcservice.Client, func(), error) {
	server := v.GetString("server")
	useIPC := server == "" || (!cmd.Flags().Changed("server") && ipc.IsRunning())

	var (
		target string
		opts   []grpc.DialOption
	)
	if useIPC {
		if !ipc.IsRunning() {
			return nil, nil, fmt.Errorf("no bepaste daemon at %s (start one with \"bepaste daemon\" or pass --server)", ipc.SocketPath())
		}
		// No auth: the socket is owner-only.
		target = ipc.Target()
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	} else {
		var err error
		target = server
		opts, err = dialOpts(v.GetString("token"))
		if err != nil {
			return nil, nil, err
		}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return grpcservice.NewClient(conn), func() { _ = conn.Close() }, nil
}

// dialOpts matches the daemon's TCP listener: plaintext without a token,
// TLS keyed by the token plus a bearer header with one.
func dialOpts(token string) ([]grpc.DialOption, error) {
	if token == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
	creds, err := tlsconf.ClientCredentials(token)
	if err != nil {
		return nil, fmt.Errorf("tls credentials: %w", err)
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(&clientCreds{token: token}),
	}, nil
}

type clientCreds struct {
	token string
}

func (c *clientCreds) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.token}, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return true }

// preview renders an entry's content on one line.
func preview(e message.Entry, width int) string {
	if e.Type == "image" {
		mime, data, err := classify.DecodeDataURI(e.Content)
		if err != nil {
			return "[image: undecodable]"
		}
		return fmt.Sprintf("[%s %s]", mime, humanize.Bytes(uint64(len(data))))
	}
	s := strings.Join(strings.Fields(e.Content), " ")
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}
