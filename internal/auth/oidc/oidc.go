package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

/* Provider wraps OIDC discovery and the id-token verifier for the
   implicit/form-post login flow. */
type Provider struct {
	provider   *oidc.Provider
	oauth2Conf *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	tenantID   string
}

/* NewProvider creates a new OIDC provider */
func NewProvider(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL, tenantID string, scopes []string) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     provider.Endpoint(),
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return &Provider{
		provider:   provider,
		oauth2Conf: oauth2Conf,
		verifier:   verifier,
		tenantID:   tenantID,
	}, nil
}

/* AuthURL generates the authorize URL for the form-post implicit flow */
func (p *Provider) AuthURL(state, nonce string) string {
	return p.oauth2Conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
}

/* Claims represents the OIDC id-token claims this service consumes */
type Claims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Country  string `json:"ctry"`
	TenantID string `json:"tid"`
	Nonce    string `json:"nonce"`
}

/* VerifyIDToken verifies signature, audience, expiry and tenant of a
   raw id-token and extracts its claims. The JWKS fetch uses the
   process default HTTP timeout. */
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	claims.Nonce = idToken.Nonce

	if p.tenantID != "" && claims.TenantID != p.tenantID {
		return nil, fmt.Errorf("id token issued for wrong tenant")
	}

	return &claims, nil
}

/* State tokens: the login flow is stateless, so state and nonce travel
   as one short-lived signed token carrying the post-login redirect. */

type stateClaims struct {
	Nonce    string `json:"nonce"`
	Redirect string `json:"redirect"`
	jwt.RegisteredClaims
}

const stateTTL = 10 * time.Minute

/* NewState creates a signed state token and its embedded nonce */
func NewState(secret []byte, redirect string) (state string, nonce string, err error) {
	nonce, err = randomString(32)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := &stateClaims{
		Nonce:    nonce,
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	state, err = token.SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return state, nonce, nil
}

/* ParseState validates a state token and returns its nonce and redirect */
func ParseState(secret []byte, state string) (nonce string, redirect string, err error) {
	claims := &stateClaims{}

	token, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", errors.New("invalid state token")
	}

	return claims.Nonce, claims.Redirect, nil
}

func randomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
