package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mercator-hq/webdev/pkg/proxy"
	"mercator-hq/webdev/pkg/proxy/types"
	"mercator-hq/webdev/pkg/router"
)

// CodeBuildFailed marks a rebuild whose command failed or whose output
// could not be published.
const CodeBuildFailed = "build_failed"

// BuildController is the part of the router the admin handlers drive.
type BuildController interface {
	Status() router.Status
	Rebuild(ctx context.Context) error
	Invalidate()
}

// StatusHandler reports the router's build status.
type StatusHandler struct {
	Controller BuildController
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(c BuildController) *StatusHandler {
	return &StatusHandler{Controller: c}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	proxy.WriteJSONResponse(w, http.StatusOK, h.Controller.Status())
}

// RebuildHandler runs a build and publish synchronously and replies with
// the resulting status.
type RebuildHandler struct {
	Controller BuildController
	Logger     *slog.Logger
}

// NewRebuildHandler creates a rebuild handler.
func NewRebuildHandler(c BuildController, logger *slog.Logger) *RebuildHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildHandler{Controller: c, Logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *RebuildHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	err := h.Controller.Rebuild(r.Context())
	if err == nil {
		proxy.WriteJSONResponse(w, http.StatusOK, h.Controller.Status())
		return
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// client went away; the build itself keeps running
		return
	}

	h.Logger.WarnContext(r.Context(), "admin rebuild failed", "error", err)

	// Build errors carry command lines and staging paths; those stay in the log.
	msg := "rebuild failed, see the server log"
	if id := h.Controller.Status().JobID; id != "" {
		msg = fmt.Sprintf("rebuild failed (job %s), see the server log", id)
	}
	proxy.WriteErrorResponse(w, types.NewErrorResponse(msg, types.ErrorTypeServerError, "", CodeBuildFailed))
}

// InvalidateHandler marks the published output stale.
type InvalidateHandler struct {
	Controller BuildController
}

// NewInvalidateHandler creates an invalidate handler.
func NewInvalidateHandler(c BuildController) *InvalidateHandler {
	return &InvalidateHandler{Controller: c}
}

// ServeHTTP implements http.Handler.
func (h *InvalidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	h.Controller.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	allow := methods[0]
	for _, m := range methods[1:] {
		allow += ", " + m
	}
	w.Header().Set("Allow", allow)
	proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed, types.NewErrorResponse(
		"method "+r.Method+" not allowed",
		types.ErrorTypeInvalidRequest,
		"",
		"method_not_allowed",
	))
	return false
}
