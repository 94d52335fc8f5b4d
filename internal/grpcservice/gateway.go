package grpcservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.klb.dev/bepaste/internal/message"
)

// NewGateway returns an HTTP/JSON mux that serves the History API by calling
// s directly:
//
//	GET    /v1/history?query=&limit=
//	DELETE /v1/history
//	POST   /v1/history/{id}/copy
//	GET    /v1/shortcut
//	PUT    /v1/shortcut   {"shortcut": "..."}
func NewGateway(s *Service) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()
	routes := []struct {
		method, pattern string
		h               gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/history", s.httpGetHistory},
		{http.MethodDelete, "/v1/history", s.httpClearHistory},
		{http.MethodPost, "/v1/history/{id}/copy", s.httpCopy},
		{http.MethodGet, "/v1/shortcut", s.httpGetShortcut},
		{http.MethodPut, "/v1/shortcut", s.httpSetShortcut},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// incoming carries the HTTP Authorization header into the metadata the gRPC
// handlers authenticate against.
func incoming(r *http.Request) context.Context {
	md := metadata.MD{}
	if a := r.Header.Get("Authorization"); a != "" {
		md.Set("authorization", a)
	}
	return metadata.NewIncomingContext(r.Context(), md)
}

func (s *Service) httpGetHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req := &message.GetHistoryRequest{Query: r.URL.Query().Get("query")}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, status.Error(codes.InvalidArgument, "limit must be an integer"))
			return
		}
		req.Limit = n
	}
	resp, err := s.GetHistory(incoming(r), req)
	writeResult(w, resp, err)
}

func (s *Service) httpClearHistory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := s.ClearHistory(incoming(r), &message.ClearHistoryRequest{})
	writeResult(w, resp, err)
}

func (s *Service) httpCopy(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "id must be an integer"))
		return
	}
	resp, err := s.CopyToClipboard(incoming(r), &message.CopyToClipboardRequest{ID: id})
	writeResult(w, resp, err)
}

func (s *Service) httpGetShortcut(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := s.GetShortcut(incoming(r), &message.GetShortcutRequest{})
	writeResult(w, resp, err)
}

func (s *Service) httpSetShortcut(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req message.SetShortcutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "body must be {\"shortcut\": \"...\"}"))
		return
	}
	resp, err := s.SetShortcut(incoming(r), &req)
	writeResult(w, resp, err)
}

func writeResult(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	writeJSON(w, gwruntime.HTTPStatusFromCode(st.Code()), map[string]any{
		"code":    st.Code().String(),
		"message": st.Message(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http response write failed", "err", err)
	}
}
