// Package grpcservice exposes the clipboard history engine over gRPC and
// HTTP/JSON. Messages are plain structs from internal/message carried by a
// JSON codec, so no generated code is involved.
package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"go.klb.dev/bepaste/internal/classify"
	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/history"
	"go.klb.dev/bepaste/internal/hub"
	"go.klb.dev/bepaste/internal/message"
)

// Engine is the part of *engine.Engine the service drives.
type Engine interface {
	History() []history.Entry
	Search(query string) []history.Entry
	Capacity() int
	ClearAll() error
	CopyBack(id int64) (history.Entry, error)
	Subscribe(name string, fn hub.Handler) (cancel func())
	Shortcut() string
	SetShortcut(s string) error
}

const watchBuffer = 16

// Service implements HistoryServer.
type Service struct {
	eng     Engine
	token   string // empty = no auth
	watches atomic.Int64
}

// New returns a Service backed by eng. token may be empty to disable auth.
func New(eng Engine, token string) *Service {
	return &Service{eng: eng, token: token}
}

// GetHistory implements HistoryServer.GetHistory.
func (s *Service) GetHistory(ctx context.Context, req *message.GetHistoryRequest) (*message.GetHistoryResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	entries := s.eng.Search(req.Query)
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return &message.GetHistoryResponse{
		Entries:  message.FromEntries(entries),
		Capacity: s.eng.Capacity(),
	}, nil
}

// ClearHistory implements HistoryServer.ClearHistory.
func (s *Service) ClearHistory(ctx context.Context, _ *message.ClearHistoryRequest) (*message.ClearHistoryResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	slog.Info("clear requested", "peer", addrFromCtx(ctx))
	if err := s.eng.ClearAll(); err != nil {
		return nil, toStatus(err)
	}
	return &message.ClearHistoryResponse{}, nil
}

// CopyToClipboard implements HistoryServer.CopyToClipboard.
func (s *Service) CopyToClipboard(ctx context.Context, req *message.CopyToClipboardRequest) (*message.CopyToClipboardResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	e, err := s.eng.CopyBack(req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &message.CopyToClipboardResponse{Entry: message.FromEntry(e)}, nil
}

// GetShortcut implements HistoryServer.GetShortcut.
func (s *Service) GetShortcut(ctx context.Context, _ *message.GetShortcutRequest) (*message.ShortcutResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	return &message.ShortcutResponse{Shortcut: s.eng.Shortcut()}, nil
}

// SetShortcut implements HistoryServer.SetShortcut.
func (s *Service) SetShortcut(ctx context.Context, req *message.SetShortcutRequest) (*message.ShortcutResponse, error) {
	if err := s.auth(ctx); err != nil {
		return nil, err
	}
	if err := s.eng.SetShortcut(req.Shortcut); err != nil {
		return nil, toStatus(err)
	}
	return &message.ShortcutResponse{Shortcut: s.eng.Shortcut()}, nil
}

// Watch implements HistoryServer.Watch. Each event carries the whole
// history, so a slow watcher only ever needs the newest one: when its
// buffer is full the oldest pending event is discarded.
func (s *Service) Watch(req *message.WatchRequest, stream WatchServer) error {
	ctx := stream.Context()
	if err := s.auth(ctx); err != nil {
		return err
	}

	id := fmt.Sprintf("watch/%s/%d", addrFromCtx(ctx), s.watches.Add(1))
	ch := make(chan hub.Event, watchBuffer)
	cancel := s.eng.Subscribe(id, func(ev hub.Event) error {
		for {
			select {
			case ch <- ev:
				return nil
			default:
			}
			select {
			case <-ch:
				slog.Warn("watch channel full, dropping oldest", "watcher", id)
			default:
			}
		}
	})
	defer cancel()

	slog.Info("watch started", "watcher", id)
	defer slog.Info("watch ended", "watcher", id)

	if req.Initial {
		if err := stream.Send(&message.WatchResponse{
			Reason:  string(hub.ReasonLoad),
			Entries: message.FromEntries(s.eng.History()),
		}); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if err := stream.Send(&message.WatchResponse{
				Reason:  string(ev.Reason),
				Entries: message.FromEntries(ev.Entries),
			}); err != nil {
				return err
			}
		}
	}
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	var (
		nf  *history.NotFoundError
		ae  *clip.AccessorError
		ce  *history.ConfigError
		de  *classify.DecodeError
		per *history.PersistenceError
	)
	switch {
	case errors.As(err, &nf):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &ae):
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &ce):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &de):
		return status.Error(codes.DataLoss, err.Error())
	case errors.As(err, &per):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// auth validates the bearer token in ctx metadata. Skipped when s.token is empty.
func (s *Service) auth(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 || vals[0] == "" {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok := strings.TrimPrefix(vals[0], "Bearer ")
	if tok != s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "local"
}
