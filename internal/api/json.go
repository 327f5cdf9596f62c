package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
)

type errResponse struct {
	Error     string `json:"error" validate:"required"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errResponse{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

// writeInternal logs err with the request id and answers 500 without
// leaking the cause.
func writeInternal(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...slog.Attr) {
	args := []any{
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.Error("api request failed", args...)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

// queryInt parses a non-negative integer parameter; absent means 0.
func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
