package main

import (
	"net"
	"net/http"
	"time"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// serveHTTPGateway serves the HTTP routes on ln. cmux hands over plain
// connections even when TLS was terminated below it, so HTTP/2 clients
// arrive as prior-knowledge h2c.
func serveHTTPGateway(ln net.Listener, mux *gwruntime.ServeMux) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.Serve(ln)
}
