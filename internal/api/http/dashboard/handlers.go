package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
)

type handler struct {
	// ctx carries the logger. Request handling uses the request context.
	ctx     context.Context //nolint:containedctx // Logger scope.
	service Service
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func (h *handler) page(w http.ResponseWriter, _ *http.Request) {
	body, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "page is missing")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Snapshot())
}

// action wraps a local trigger as a POST handler answering with the resulting snapshot.
func (h *handler) action(call func(context.Context) (*alert.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := call(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, alert.ErrUnavailable) {
				status = http.StatusServiceUnavailable
			}

			logger.WarnKV(h.ctx, "Dashboard action failed", "path", r.URL.Path, "error", err)
			writeError(w, status, err.Error())

			return
		}

		writeJSON(w, http.StatusOK, snapshot)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
