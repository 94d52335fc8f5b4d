package grpcservice

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/engine"
	"go.klb.dev/bepaste/internal/hub"
	"go.klb.dev/bepaste/internal/kvstore"
	"go.klb.dev/bepaste/internal/message"
)

type fixture struct {
	eng    *engine.Engine
	mem    *clip.Memory
	svc    *Service
	client *Client
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	kv, err := kvstore.Open(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	mem := clip.NewMemory()
	eng := engine.New(mem, kv, engine.Config{Interval: time.Hour})
	require.NoError(t, eng.Start())
	t.Cleanup(eng.Stop)

	svc := New(eng, token)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &fixture{eng: eng, mem: mem, svc: svc, client: NewClient(conn)}
}

func (f *fixture) capture(t *testing.T, texts ...string) {
	t.Helper()
	for _, s := range texts {
		require.NoError(t, f.mem.WriteText(s))
		_, ok := f.eng.PollOnce()
		require.True(t, ok)
	}
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t, "")
	f.capture(t, "alpha", "beta", "Alphabet")
	ctx := context.Background()

	resp, err := f.client.GetHistory(ctx, &message.GetHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "Alphabet", resp.Entries[0].Content)
	assert.Equal(t, "text", resp.Entries[0].Type)
	assert.Equal(t, 500, resp.Capacity)

	resp, err = f.client.GetHistory(ctx, &message.GetHistoryRequest{Query: "ALPHA"})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 2)

	resp, err = f.client.GetHistory(ctx, &message.GetHistoryRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 1)
}

func TestCopyToClipboard(t *testing.T) {
	f := newFixture(t, "")
	f.capture(t, "first", "second")
	ctx := context.Background()

	h, err := f.client.GetHistory(ctx, &message.GetHistoryRequest{})
	require.NoError(t, err)
	first := h.Entries[1]

	resp, err := f.client.CopyToClipboard(ctx, &message.CopyToClipboardRequest{ID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Entry.Content)
	snap, err := f.mem.Read()
	require.NoError(t, err)
	assert.Equal(t, "first", snap.Text)

	_, err = f.client.CopyToClipboard(ctx, &message.CopyToClipboardRequest{ID: 1})
	assert.Equal(t, codes.NotFound, status.Code(err))

	f.mem.FailWrites(true)
	_, err = f.client.CopyToClipboard(ctx, &message.CopyToClipboardRequest{ID: first.ID})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, "")
	f.capture(t, "a", "b")
	ctx := context.Background()

	_, err := f.client.ClearHistory(ctx, &message.ClearHistoryRequest{})
	require.NoError(t, err)
	resp, err := f.client.GetHistory(ctx, &message.GetHistoryRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Entries)
}

func TestShortcut(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	resp, err := f.client.GetShortcut(ctx, &message.GetShortcutRequest{})
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultShortcut, resp.Shortcut)

	resp, err = f.client.SetShortcut(ctx, &message.SetShortcutRequest{Shortcut: "Ctrl+Alt+H"})
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+H", resp.Shortcut)

	_, err = f.client.SetShortcut(ctx, &message.SetShortcutRequest{Shortcut: " "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "s3cret")

	_, err := f.client.GetHistory(context.Background(), &message.GetHistoryRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	_, err = f.client.GetHistory(bad, &message.GetHistoryRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	good := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer s3cret")
	_, err = f.client.GetHistory(good, &message.GetHistoryRequest{})
	assert.NoError(t, err)
}

func TestWatch(t *testing.T) {
	f := newFixture(t, "")
	f.capture(t, "before")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := f.client.Watch(ctx, &message.WatchRequest{Initial: true})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(hub.ReasonLoad), ev.Reason)
	require.Len(t, ev.Entries, 1)

	f.capture(t, "after")
	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(hub.ReasonCapture), ev.Reason)
	require.Len(t, ev.Entries, 2)
	assert.Equal(t, "after", ev.Entries[0].Content)

	_, err = f.client.ClearHistory(ctx, &message.ClearHistoryRequest{})
	require.NoError(t, err)
	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(hub.ReasonClear), ev.Reason)
	assert.Empty(t, ev.Entries)
}

func TestGatewayRoutes(t *testing.T) {
	f := newFixture(t, "tok")
	f.capture(t, "one", "two")
	mux, err := NewGateway(f.svc)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	do := func(method, path, body string, auth bool) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		if auth {
			req.Header.Set("Authorization", "Bearer tok")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := do(http.MethodGet, "/v1/history", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(http.MethodGet, "/v1/history?limit=1", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist message.GetHistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "two", hist.Entries[0].Content)

	resp = do(http.MethodPost, "/v1/history/12/copy", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(http.MethodPost, "/v1/history/abc/copy", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(http.MethodPut, "/v1/shortcut", `{"shortcut":"Ctrl+B"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ctrl+B", f.eng.Shortcut())

	resp = do(http.MethodDelete, "/v1/history", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.eng.History())
}
