package handler

import (
	"encoding/json"
	"net/http"

	httputil "hallbook/pkg/http"
	"hallbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type bulkPayload struct {
	Strategy string `json:"strategy"`
	HallName string `json:"hall_name,omitempty"`
}

// BulkDecide runs one strategy across pending requests and reports the
// aggregate counters. The run itself is best-effort, so the endpoint answers
// 200 even when individual items failed.
func (h *RequestHandler) BulkDecide(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload bulkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "BulkDecide", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	strategy, err := model.ParseBulkStrategy(payload.Strategy)
	if err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: err.Error(),
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "BulkDecide", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	outcome, err := h.service.BulkDecide(r.Context(), strategy, payload.HallName)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "BulkDecide", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, outcome); err != nil {
		h.log.Error("failed to write success response", "handler", "BulkDecide", "operation", "WriteSuccess", "error", err)
	}
}
