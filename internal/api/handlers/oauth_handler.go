package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"tiergate/internal/pkg/errors"
)

type authenticator interface {
	Authenticate(ctx context.Context, code string) error
}

// OAuthHandler bootstraps the credential manager: Procore redirects here
// after operator consent and the authorization code is exchanged for the
// initial token pair.
type OAuthHandler struct {
	creds authenticator
}

func NewOAuthHandler(creds authenticator) *OAuthHandler {
	return &OAuthHandler{creds: creds}
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Missing authorization code", nil)
		return
	}

	if err := h.creds.Authenticate(r.Context(), code); err != nil {
		log.Error().Err(err).Msg("authorization code exchange failed")
		errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeUpstream, "Token exchange failed", nil)
		return
	}

	log.Info().Msg("credentials established via authorization code")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "authenticated"})
}
