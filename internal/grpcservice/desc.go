package grpcservice

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/bepaste/internal/message"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "bepaste.v1.History"

// HistoryServer is the server API for the History service.
type HistoryServer interface {
	GetHistory(context.Context, *message.GetHistoryRequest) (*message.GetHistoryResponse, error)
	ClearHistory(context.Context, *message.ClearHistoryRequest) (*message.ClearHistoryResponse, error)
	CopyToClipboard(context.Context, *message.CopyToClipboardRequest) (*message.CopyToClipboardResponse, error)
	GetShortcut(context.Context, *message.GetShortcutRequest) (*message.ShortcutResponse, error)
	SetShortcut(context.Context, *message.SetShortcutRequest) (*message.ShortcutResponse, error)
	Watch(*message.WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*message.WatchResponse) error
	Context() context.Context
}

// ServiceDesc describes the History service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetHistory", HistoryServer.GetHistory),
		unary("ClearHistory", HistoryServer.ClearHistory),
		unary("CopyToClipboard", HistoryServer.CopyToClipboard),
		unary("GetShortcut", HistoryServer.GetShortcut),
		unary("SetShortcut", HistoryServer.SetShortcut),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "bepaste/v1/history",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if ic == nil {
				return call(srv.(HistoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			})
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(message.WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HistoryServer).Watch(in, &watchServer{stream})
}

type watchServer struct {
	grpc.ServerStream
}

func (w *watchServer) Send(m *message.WatchResponse) error { return w.ServerStream.SendMsg(m) }
