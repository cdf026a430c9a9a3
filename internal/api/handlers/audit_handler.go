package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tiergate/internal/pkg/errors"
	"tiergate/internal/platform/audit"
)

type decisionReader interface {
	Recent(limit int) ([]*audit.DecisionRecord, error)
}

// AuditHandler exposes the local decision log for operators.
type AuditHandler struct {
	store decisionReader
}

func NewAuditHandler(store decisionReader) *AuditHandler {
	return &AuditHandler{store: store}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be between 1 and 500", nil)
			return
		}
		limit = parsed
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}
	if records == nil {
		records = []*audit.DecisionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
