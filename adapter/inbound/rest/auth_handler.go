package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ajkula/sendcoordinator/adapter/outbound/auth"
	"github.com/ajkula/sendcoordinator/config"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// AuthHandler issues tokens for the single configured admin principal,
// grounded on the teacher's login handler but without a multi-user store.
type AuthHandler struct {
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	config    *config.Config
	logger    outbound.Logger
}

func NewAuthHandler(passwords *auth.PasswordService, tokens *auth.TokenService, cfg *config.Config, logger outbound.Logger) *AuthHandler {
	return &AuthHandler{passwords: passwords, tokens: tokens, config: cfg, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username != h.config.Security.AdminUsername {
		h.logger.Warn("login failed: unknown username", "username", req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	salt, err := auth.DecodeSalt(h.config.Security.AdminPasswordHash[:32])
	if err != nil || !h.verify(req.Password, salt) {
		h.logger.Warn("login failed: bad password", "username", req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.Issue(time.Now())
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// verify checks password against the config-stored hash. The stored format
// is "<32-hex-char salt><hash>", produced once at provisioning time.
func (h *AuthHandler) verify(password string, salt [16]byte) bool {
	stored := h.config.Security.AdminPasswordHash
	if len(stored) <= 32 {
		return false
	}
	return h.passwords.VerifyPassword(password, stored[32:], salt)
}
