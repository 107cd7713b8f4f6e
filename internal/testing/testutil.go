package testing

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/assetdesk/rights-api/internal/access"
	"github.com/assetdesk/rights-api/internal/auth"
	"github.com/assetdesk/rights-api/internal/kv"
	"github.com/assetdesk/rights-api/internal/logging"
)

/* SetupTestStore spins up an in-process redis and returns a KV store
   backed by it. Cleanup is registered on the test. */
func SetupTestStore(t *testing.T) kv.Store {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return kv.NewRedisStore(client)
}

/* TestLogger returns a logger that only emits errors */
func TestLogger() *logging.Logger {
	return logging.NewLogger("error", "json", "stderr")
}

/* TestTables returns a small access table fixture:
   - example.com is an allowed domain with no extra grants
   - reviewer@example.com holds rights-reviewer
   - manager@example.com holds rights-manager
   - admin@example.com holds reports-admin and sudo */
func TestTables() *access.Loader {
	return access.NewStaticLoader(&access.Tables{
		AllowedDomains: []string{"example.com"},
		Grants: map[string][]string{
			"example.com":          {},
			"reviewer@example.com": {access.PermRightsReviewer},
			"manager@example.com":  {access.PermRightsManager},
			"admin@example.com":    {access.PermReportsAdmin, access.PermSudo},
		},
		Roles: map[string]access.RoleEntry{
			"example.com": {
				EmploymentType: "employee",
				CompanyName:    "Example Co",
				Country:        "US",
			},
		},
	})
}

/* TestSession builds a session with the given email and permissions */
func TestSession(email string, permissions ...string) *auth.Session {
	return &auth.Session{
		SubjectID:   "test-" + email,
		Name:        "Test User",
		Email:       email,
		Country:     "US",
		Permissions: permissions,
	}
}

/* SessionCookie signs a session and wraps it in the given cookie name */
func SessionCookie(t *testing.T, secret []byte, cookieName string, session *auth.Session) *http.Cookie {
	t.Helper()

	token, err := auth.SignSession(secret, session, time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign test session: %v", err)
	}

	return &http.Cookie{
		Name:  cookieName,
		Value: token,
		Path:  "/",
	}
}
