package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vango-go/vai-sentinel/pkg/gateway/apierror"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

// InterventionsHandler lists the audited interventions of one live session.
type InterventionsHandler struct {
	Store store.Store
}

type interventionsResp struct {
	SessionID     string               `json:"session_id"`
	Interventions []store.Intervention `json:"interventions"`
}

func (h InterventionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeAPIError(w, r, &apierror.Error{
			Type:    apierror.ErrInvalidRequest,
			Message: "session id is required",
			Param:   "session_id",
		}, http.StatusBadRequest)
		return
	}

	st := h.Store
	if st == nil {
		st = store.Nop{}
	}
	items, err := st.ListInterventions(r.Context(), sessionID)
	if err != nil {
		writeErrorFrom(w, r, fmt.Errorf("list interventions: %w", err))
		return
	}
	if items == nil {
		items = []store.Intervention{}
	}
	writeJSON(w, http.StatusOK, interventionsResp{SessionID: sessionID, Interventions: items})
}
