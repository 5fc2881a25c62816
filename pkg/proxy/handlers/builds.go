package handlers

import (
	"context"
	"net/http"
	"strconv"

	"mercator-hq/webdev/pkg/history"
	"mercator-hq/webdev/pkg/proxy"
	"mercator-hq/webdev/pkg/proxy/types"
)

// DefaultBuildsLimit is used when the request has no limit parameter.
const DefaultBuildsLimit = 20

// MaxBuildsLimit caps the limit parameter.
const MaxBuildsLimit = 500

// HistoryLister lists recorded builds, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// BuildsHandler serves recent build history as JSON.
type BuildsHandler struct {
	History HistoryLister
}

// NewBuildsHandler creates a builds handler.
func NewBuildsHandler(h HistoryLister) *BuildsHandler {
	return &BuildsHandler{History: h}
}

type buildsResponse struct {
	Builds []history.Record `json:"builds"`
}

// ServeHTTP implements http.Handler.
func (h *BuildsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	limit := DefaultBuildsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
				"limit must be a positive integer", "limit", "invalid_limit"))
			return
		}
		limit = min(n, MaxBuildsLimit)
	}

	records, err := h.History.List(r.Context(), limit)
	if err != nil {
		proxy.WriteErrorResponse(w, types.NewServerError("failed to read build history"))
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	proxy.WriteJSONResponse(w, http.StatusOK, buildsResponse{Builds: records})
}
