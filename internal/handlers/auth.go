package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/assetdesk/rights-api/internal/auth"
	"github.com/assetdesk/rights-api/internal/auth/oidc"
	"github.com/assetdesk/rights-api/internal/config"
	"github.com/assetdesk/rights-api/internal/logging"
)

/* AuthHandlers implements the OIDC form-post login flow and the
   session endpoints. */
type AuthHandlers struct {
	provider *oidc.Provider
	resolver *auth.Resolver
	session  config.SessionConfig
	logout   string
	logger   *logging.Logger
}

/* NewAuthHandlers creates new auth handlers. provider may be nil when
   the OIDC configuration is incomplete; every route then answers 503. */
func NewAuthHandlers(provider *oidc.Provider, resolver *auth.Resolver, session config.SessionConfig, logoutURL string, logger *logging.Logger) *AuthHandlers {
	return &AuthHandlers{
		provider: provider,
		resolver: resolver,
		session:  session,
		logout:   logoutURL,
		logger:   logger,
	}
}

func (h *AuthHandlers) unavailable(w http.ResponseWriter) bool {
	if h.provider == nil || h.session.Secret == "" {
		WriteError(w, http.StatusServiceUnavailable, fmt.Errorf("auth not configured"), nil)
		return true
	}
	return false
}

/* sameSite maps the configured SameSite name to its http constant */
func sameSite(name string) http.SameSite {
	switch strings.ToLower(name) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

/* safeRedirect keeps post-login redirects same-origin */
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

/* Login starts the OIDC flow with a signed state/nonce pair */
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	redirect := safeRedirect(r.URL.Query().Get("redirect"))

	state, nonce, err := oidc.NewState([]byte(h.session.Secret), redirect)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create login state: %w", err), nil)
		return
	}

	http.Redirect(w, r, h.provider.AuthURL(state, nonce), http.StatusFound)
}

/* Callback validates the form-post id-token and issues the session cookie */
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid callback form"), nil)
		return
	}

	rawIDToken := r.PostFormValue("id_token")
	state := r.PostFormValue("state")
	if rawIDToken == "" || state == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("missing id_token or state"), nil)
		return
	}

	nonce, redirect, err := oidc.ParseState([]byte(h.session.Secret), state)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid or expired state"), nil)
		return
	}

	claims, err := h.provider.VerifyIDToken(r.Context(), rawIDToken)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("failed to verify ID token: %w", err), nil)
		return
	}

	if claims.Nonce != nonce {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("nonce mismatch"), nil)
		return
	}

	session, err := h.resolver.CreateSession(r.Context(), auth.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Country: claims.Country,
	}, r.Host)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to resolve session: %w", err), nil)
		return
	}
	if session == nil {
		WriteError(w, http.StatusForbidden, fmt.Errorf("access denied"), nil)
		return
	}

	token, err := auth.SignSession([]byte(h.session.Secret), session, h.session.TTL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to sign session: %w", err), nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.session.CookieDomain,
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: sameSite(h.session.CookieSameSite),
	})

	h.logger.Info("login", logging.Fields{"email": session.Email})

	http.Redirect(w, r, safeRedirect(redirect), http.StatusFound)
}

/* Logout clears the session cookie and hands off to the provider */
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.session.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: sameSite(h.session.CookieSameSite),
	})

	target := h.logout
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

/* User returns the decoded effective session */
func (h *AuthHandlers) User(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("not authenticated"), nil)
		return
	}
	WriteSuccess(w, session)
}
