package api

import (
	"net/http"

	"github.com/seenimoa/pricecast/internal/config"
	"github.com/seenimoa/pricecast/internal/engine"
)

// ConfigResponse is the JSON body returned by GET /api/v1/config.
type ConfigResponse struct {
	Config  *config.Config  `json:"config"`
	Methods []engine.Method `json:"methods"`
}

// handleGetConfig returns the running configuration. It is read-only; edit
// the config file or PRICECAST_* variables and restart to change it.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:  s.cfg,
			Methods: engine.Methods(),
		},
	})
}
