package handlers

import (
	"net/http"

	"github.com/vango-go/vai-sentinel/pkg/core/sentinel"
)

// SentinelHandler serves the operator description of the monitor: the model,
// policy version, feature list, examples and the exact session configuration.
type SentinelHandler struct{}

func (h SentinelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sentinel.Describe())
}
