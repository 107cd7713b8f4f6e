package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/assetdesk/rights-api/internal/access"
	"github.com/assetdesk/rights-api/internal/logging"
)

// Identity is what the identity provider asserts about a login.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Country string
}

// Resolver derives sessions and per-request effective identities from
// the access tables.
type Resolver struct {
	tables          *access.Loader
	restrictedHosts []string
	logger          *logging.Logger
}

// NewResolver creates a resolver.
func NewResolver(tables *access.Loader, restrictedHosts []string, logger *logging.Logger) *Resolver {
	return &Resolver{
		tables:          tables,
		restrictedHosts: restrictedHosts,
		logger:          logger,
	}
}

func (r *Resolver) restricted(host string) bool {
	for _, h := range r.restrictedHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

// CreateSession resolves a session for an asserted identity, or nil
// when access is denied. Denial reasons: no usable email, domain not
// allow-listed, no permission grant at any level, or a restricted host
// without the preview permission.
func (r *Resolver) CreateSession(ctx context.Context, identity Identity, host string) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" || !strings.Contains(email, "@") {
		r.logger.Warn("login denied: no usable email", logging.Fields{"subject": identity.Subject})
		return nil, nil
	}

	tables, err := r.tables.Tables(ctx)
	if err != nil {
		return nil, err
	}

	if !tables.DomainAllowed(email) {
		r.logger.Warn("login denied: domain not allowed", logging.Fields{"email": email})
		return nil, nil
	}

	perms := tables.PermissionsFor(email)
	if perms == nil {
		r.logger.Warn("login denied: no permission grant", logging.Fields{"email": email})
		return nil, nil
	}

	if r.restricted(host) && !contains(perms, access.PermPreview) {
		r.logger.Warn("login denied: restricted host without preview", logging.Fields{
			"email": email,
			"host":  host,
		})
		return nil, nil
	}

	roles := tables.RolesFor(email, identity.Country)

	country := roles.Country
	if country == "" {
		country = identity.Country
	}

	return &Session{
		SubjectID:        identity.Subject,
		Name:             identity.Name,
		Email:            email,
		Country:          country,
		EmploymentType:   roles.EmploymentType,
		CompanyName:      roles.CompanyName,
		Permissions:      perms,
		Customers:        roles.Customers,
		RestrictedBrands: roles.RestrictedBrands,
	}, nil
}

// Override cookie names for the sudo flow.
const (
	sudoNameCookie       = "sudo-name"
	sudoEmailCookie      = "sudo-email"
	sudoCountryCookie    = "sudo-country"
	sudoEmploymentCookie = "sudo-employment-type"
)

// GetUser re-derives the effective identity for a request. When the
// session holds the sudo permission and override cookies are present,
// the effective identity is replaced by the override, permissions and
// attributes are recomputed for it, and the original email is kept
// under Su. Override cookies without the sudo permission are ignored
// and logged as a denied attempt.
func (r *Resolver) GetUser(req *http.Request, session *Session) *Session {
	overrideEmail := cookieValue(req, sudoEmailCookie)
	if overrideEmail == "" {
		return session
	}

	if !session.HasPermission(access.PermSudo) {
		r.logger.Warn("sudo override denied", logging.Fields{
			"email":    session.Email,
			"override": overrideEmail,
		})
		return session
	}

	tables, err := r.tables.Tables(req.Context())
	if err != nil {
		r.logger.Error("sudo override: access tables unavailable", err, logging.Fields{
			"email": session.Email,
		})
		return session
	}

	email := strings.ToLower(overrideEmail)
	roles := tables.RolesFor(email, cookieValue(req, sudoCountryCookie))

	effective := &Session{
		SubjectID:        session.SubjectID,
		Name:             session.Name,
		Email:            email,
		Country:          session.Country,
		EmploymentType:   roles.EmploymentType,
		CompanyName:      roles.CompanyName,
		Permissions:      tables.PermissionsFor(email),
		Customers:        roles.Customers,
		RestrictedBrands: roles.RestrictedBrands,
		Su:               session.Email,
	}

	if name := cookieValue(req, sudoNameCookie); name != "" {
		effective.Name = name
	}
	if country := cookieValue(req, sudoCountryCookie); country != "" {
		effective.Country = country
	}
	if employment := cookieValue(req, sudoEmploymentCookie); employment != "" {
		effective.EmploymentType = employment
	}

	r.logger.Info("sudo override applied", logging.Fields{
		"su":        session.Email,
		"effective": email,
	})
	return effective
}

func cookieValue(req *http.Request, name string) string {
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
