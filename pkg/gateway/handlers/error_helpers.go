package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/vai-sentinel/pkg/gateway/apierror"
	"github.com/vango-go/vai-sentinel/pkg/gateway/mw"
)

func writeAPIError(w http.ResponseWriter, r *http.Request, apiErr *apierror.Error, status int) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if apiErr.RequestID == "" {
		apiErr.RequestID = reqID
	}
	apierror.WriteJSON(w, status, apiErr)
}

func writeErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apiErr, status := apierror.FromError(err, reqID)
	apierror.WriteJSON(w, status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
