package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/detect"
	"go.klb.dev/bepaste/internal/engine"
	"go.klb.dev/bepaste/internal/grpcservice"
	"go.klb.dev/bepaste/internal/history"
	"go.klb.dev/bepaste/internal/ipc"
	"go.klb.dev/bepaste/internal/kvstore"
	"go.klb.dev/bepaste/internal/tlsconf"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and keep its history",
		Long: `Polls the system clipboard, records every new text, image or image file
copied, and serves the history on the local IPC socket. With --addr the same
API is also served over TCP, as gRPC and as HTTP/JSON on one port.

capacity and interval are re-read whenever the config file changes.

Config file search order:
  /etc/bepaste/bepaste.toml
  $HOME/.config/bepaste/bepaste.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → BEPASTE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.Int("capacity", history.DefaultCapacity, "maximum number of history entries (1-100000)")
	f.Duration("interval", detect.DefaultInterval, "clipboard poll interval (min 100ms)")
	f.String("db", defaultDBPath(), "history database file")
	f.Int64("max-store-bytes", kvstore.DefaultMaxBytes, "size ceiling for the history database")
	f.String("addr", "", "TCP listen address for gRPC + HTTP (empty = IPC socket only)")
	f.String("token", "", "shared secret for the TCP listener (empty = no auth, no encryption)")
	f.String("backend", "system", "clipboard backend: system|memory")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	capacity := v.GetInt("capacity")
	if err := history.ValidateCapacity(capacity); err != nil {
		slog.Warn("invalid capacity, using default", "capacity", capacity, "default", history.DefaultCapacity, "err", err)
		capacity = history.DefaultCapacity
	}

	// The socket is claimed before the clipboard or the database is touched.
	ipcLn, err := ipc.Listen()
	if err != nil {
		return err
	}
	defer ipcLn.Close()

	backend, err := openBackend(v.GetString("backend"))
	if err != nil {
		return err
	}
	defer backend.Close()

	dbPath := v.GetString("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("db dir: %w", err)
	}
	db, err := kvstore.Open(dbPath, v.GetInt64("max-store-bytes"))
	if err != nil {
		return err
	}
	defer db.Close()

	kv := kvstore.NewAsync(db)
	kv.OnError = func(key string, err error) {
		slog.Error("history write failed", "key", key, "err", err)
	}
	defer kv.Close()

	slog.Info("bepaste daemon starting",
		"version", Version,
		"backend", backend.Name(),
		"db", dbPath,
		"capacity", capacity,
	)

	eng := engine.New(backend, kv, engine.Config{
		Capacity: capacity,
		Interval: v.GetDuration("interval"),
	})
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	ipcSrv := grpc.NewServer()
	grpcservice.Register(ipcSrv, grpcservice.New(eng, ""))
	go func() {
		if err := ipcSrv.Serve(ipcLn); err != nil {
			slog.Error("IPC server stopped", "err", err)
		}
	}()
	defer ipcSrv.Stop()
	slog.Info("IPC socket listening", "path", ipc.SocketPath())

	if addr := v.GetString("addr"); addr != "" {
		stop, err := serveTCP(addr, v.GetString("token"), eng)
		if err != nil {
			return err
		}
		defer stop()
	}

	watchConfig(v, eng)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func openBackend(name string) (clip.Backend, error) {
	switch name {
	case "", "system":
		return clip.New(), nil
	case "memory":
		return clip.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q (want system or memory)", name)
	}
}

// serveTCP serves gRPC and the HTTP routes on one port. gRPC connections are
// told apart by their HTTP/2 content-type; everything else is HTTP.
func serveTCP(addr, token string, eng *engine.Engine) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	encrypted := token != ""
	if encrypted {
		cfg, err := tlsconf.ServerConfig(token)
		if err != nil {
			_ = ln.Close()
			return nil, err
		}
		ln = tls.NewListener(ln, cfg)
	}

	svc := grpcservice.New(eng, token)
	gw, err := grpcservice.NewGateway(svc)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	srv := grpc.NewServer()
	grpcservice.Register(srv, svc)

	go func() { _ = srv.Serve(grpcL) }()
	go func() { _ = serveHTTPGateway(httpL, gw) }()
	go func() {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("tcp listener stopped", "err", err)
		}
	}()

	slog.Info("listening", "addr", ln.Addr(), "encrypted", encrypted, "auth", token != "")
	return func() {
		srv.Stop()
		_ = ln.Close()
	}, nil
}

// watchConfig applies capacity and interval edits to the running engine.
func watchConfig(v *viper.Viper, eng *engine.Engine) {
	if v.ConfigFileUsed() == "" {
		return
	}
	interval := v.GetDuration("interval")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		slog.Info("config changed", "file", e.Name)
		if c := v.GetInt("capacity"); c != eng.Capacity() {
			if err := eng.SetCapacity(c); err != nil {
				slog.Warn("capacity not applied", "capacity", c, "err", err)
			}
		}
		if d := v.GetDuration("interval"); d > 0 && d != interval {
			interval = d
			eng.SetInterval(d)
		}
	})
	v.WatchConfig()
	slog.Debug("watching config", "file", v.ConfigFileUsed())
}
