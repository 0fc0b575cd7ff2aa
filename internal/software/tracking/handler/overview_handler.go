package handler

import (
	"context"
	"net/http"
)

// --- Handler: GET /admin/overview ---

func (handler *TrackingHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	overview, err := handler.svc.GetOverview(ctx)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to fetch tracking overview", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, overview)
}
