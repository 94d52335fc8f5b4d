package grpcservice

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/bepaste/internal/message"
)

// Client is a History client. Every call is sent with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetHistory(ctx context.Context, in *message.GetHistoryRequest, opts ...grpc.CallOption) (*message.GetHistoryResponse, error) {
	return invoke[message.GetHistoryResponse](ctx, c, "GetHistory", in, opts)
}

func (c *Client) ClearHistory(ctx context.Context, in *message.ClearHistoryRequest, opts ...grpc.CallOption) (*message.ClearHistoryResponse, error) {
	return invoke[message.ClearHistoryResponse](ctx, c, "ClearHistory", in, opts)
}

func (c *Client) CopyToClipboard(ctx context.Context, in *message.CopyToClipboardRequest, opts ...grpc.CallOption) (*message.CopyToClipboardResponse, error) {
	return invoke[message.CopyToClipboardResponse](ctx, c, "CopyToClipboard", in, opts)
}

func (c *Client) GetShortcut(ctx context.Context, in *message.GetShortcutRequest, opts ...grpc.CallOption) (*message.ShortcutResponse, error) {
	return invoke[message.ShortcutResponse](ctx, c, "GetShortcut", in, opts)
}

func (c *Client) SetShortcut(ctx context.Context, in *message.SetShortcutRequest, opts ...grpc.CallOption) (*message.ShortcutResponse, error) {
	return invoke[message.ShortcutResponse](ctx, c, "SetShortcut", in, opts)
}

// WatchClient receives history-changed events.
type WatchClient interface {
	Recv() (*message.WatchResponse, error)
}

// Watch opens a server stream of history-changed events. Cancel ctx to end it.
func (c *Client) Watch(ctx context.Context, in *message.WatchRequest, opts ...grpc.CallOption) (WatchClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Watch"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &watchClient{stream}, nil
}

type watchClient struct {
	grpc.ClientStream
}

func (w *watchClient) Recv() (*message.WatchResponse, error) {
	m := new(message.WatchResponse)
	if err := w.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
