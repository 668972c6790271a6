package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/auth"
	"github.com/Simplici0/pricecalc/internal/metrics"
	"github.com/Simplici0/pricecalc/internal/store"
)

type ctxKey int

const userCtxKey ctxKey = iota

type loginRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      store.User `json:"user"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	identity, err := s.passwords.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		metrics.IncreaseLogins("password", false)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid username or password")
			return
		}
		zap.S().Named("auth").Errorw("password login failed", "username", req.Username, "error", err)
		writeError(w, r, http.StatusInternalServerError, "authentication provider unavailable")
		return
	}

	user, err := s.provision(r.Context(), identity)
	if err != nil {
		metrics.IncreaseLogins(identity.Provider, false)
		zap.S().Named("auth").Errorw("user provisioning failed", "username", identity.Username, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	metrics.IncreaseLogins(identity.Provider, true)

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		zap.S().Named("auth").Errorw("token signing failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, r, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// provision maps a verified identity onto a stored user, creating directory
// and Google accounts on their first login.
func (s *server) provision(ctx context.Context, identity *auth.Identity) (store.User, error) {
	users := s.store.Users()

	if identity.Provider == store.ProviderLocal {
		user, err := users.GetByUsername(ctx, store.ProviderLocal, identity.Username)
		if err != nil {
			return store.User{}, fmt.Errorf("load local user: %w", err)
		}
		if err := users.TouchLogin(ctx, user.ID); err != nil {
			return store.User{}, err
		}
		return users.GetByID(ctx, user.ID)
	}

	role := store.RoleUser
	if identity.Admin {
		role = store.RoleAdmin
	}
	return users.UpsertExternal(ctx, store.User{
		Provider:    identity.Provider,
		Username:    identity.Username,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        role,
	})
}

func (s *server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		writeError(w, r, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	http.Redirect(w, r, s.google.AuthCodeURL(s.states.New()), http.StatusTemporaryRedirect)
}

func (s *server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		writeError(w, r, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	logger := zap.S().Named("auth")

	if err := s.states.Consume(r.FormValue("state")); err != nil {
		logger.Warnw("rejected Google callback", "error", err)
		s.redirectLoginError(w, r, "invalid_state")
		return
	}
	if errParam := r.FormValue("error"); errParam != "" {
		s.redirectLoginError(w, r, errParam)
		return
	}

	identity, err := s.google.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		metrics.IncreaseLogins(store.ProviderGoogle, false)
		logger.Warnw("google login rejected", "error", err)
		switch {
		case errors.Is(err, auth.ErrDomainNotAllowed):
			s.redirectLoginError(w, r, "domain_not_allowed")
		case errors.Is(err, auth.ErrEmailNotVerified):
			s.redirectLoginError(w, r, "email_not_verified")
		default:
			s.redirectLoginError(w, r, "token_exchange_failed")
		}
		return
	}

	user, err := s.provision(r.Context(), identity)
	if err != nil {
		metrics.IncreaseLogins(store.ProviderGoogle, false)
		logger.Errorw("google user provisioning failed", "email", identity.Email, "error", err)
		s.redirectLoginError(w, r, "user_creation_failed")
		return
	}
	metrics.IncreaseLogins(store.ProviderGoogle, true)

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		logger.Errorw("token signing failed", "error", err)
		s.redirectLoginError(w, r, "token_generation_failed")
		return
	}

	target := strings.TrimRight(s.cfg.Service.FrontendBaseURL, "/") + "/auth/google/callback?token=" + url.QueryEscape(token)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (s *server) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	target := strings.TrimRight(s.cfg.Service.FrontendBaseURL, "/") + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, currentUser(r))
}

// authMiddleware accepts "Authorization: Bearer <jwt>" and loads the user
// behind it, so role changes and removals apply to tokens already issued.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := s.store.Users().GetByID(r.Context(), claims.UserID)
		if errors.Is(err, store.ErrRecordNotFound) {
			writeError(w, r, http.StatusUnauthorized, "unknown user")
			return
		}
		if err != nil {
			zap.S().Named("auth").Errorw("load user failed", "user_id", claims.UserID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin() {
			writeError(w, r, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) store.User {
	user, _ := r.Context().Value(userCtxKey).(store.User)
	return user
}
