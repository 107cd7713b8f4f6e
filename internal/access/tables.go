package access

import (
	"sort"
	"strings"
)

// Well-known permission names.
const (
	PermRightsReviewer = "rights-reviewer"
	PermRightsManager  = "rights-manager"
	PermReportsAdmin   = "reports-admin"
	PermPreview        = "preview"
	PermSudo           = "sudo"
)

// permissionAliases expands the short codes used in the access sheets.
// Applied once at resolution time; business logic only ever sees the
// long names.
var permissionAliases = map[string]string{
	"rr": PermRightsReviewer,
	"rm": PermRightsManager,
	"ra": PermReportsAdmin,
}

// RoleEntry describes employment attributes configured for an email or
// a whole domain.
type RoleEntry struct {
	EmploymentType   string   `json:"employmentType" yaml:"employmentType"`
	CompanyName      string   `json:"companyName" yaml:"companyName"`
	Country          string   `json:"country" yaml:"country"`
	Customers        []string `json:"customers" yaml:"customers"`
	RestrictedBrands []string `json:"restrictedBrands" yaml:"restrictedBrands"`
}

// Tables is the in-memory form of the access-control sheets.
//
// Grants maps a pattern to permission codes. Patterns are "*" (wildcard,
// applies to everyone), a bare domain ("example.com"), or an exact
// email. Roles uses the same email/domain patterns, with email entries
// overriding domain entries field by field.
type Tables struct {
	AllowedDomains []string             `json:"allowedDomains" yaml:"allowedDomains"`
	Grants         map[string][]string  `json:"grants" yaml:"grants"`
	Roles          map[string]RoleEntry `json:"roles" yaml:"roles"`
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// DomainAllowed reports whether the email's domain is on the
// organization allow-list.
func (t *Tables) DomainAllowed(email string) bool {
	domain := emailDomain(email)
	if domain == "" {
		return false
	}
	for _, d := range t.AllowedDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

// PermissionsFor computes the union of wildcard-level, domain-level and
// email-level grants for an email, with aliases expanded. Returns nil
// when no grant entry matches at any level.
func (t *Tables) PermissionsFor(email string) []string {
	email = strings.ToLower(email)
	domain := emailDomain(email)

	var matched bool
	seen := map[string]bool{}
	var perms []string

	collect := func(pattern string) {
		codes, ok := t.Grants[pattern]
		if !ok {
			return
		}
		matched = true
		for _, code := range codes {
			name := code
			if long, ok := permissionAliases[code]; ok {
				name = long
			}
			if !seen[name] {
				seen[name] = true
				perms = append(perms, name)
			}
		}
	}

	collect("*")
	if domain != "" {
		collect(domain)
	}
	collect(email)

	if !matched {
		return nil
	}
	if perms == nil {
		// A matching entry with no codes still counts as a grant.
		perms = []string{}
	}
	sort.Strings(perms)
	return perms
}

// RolesFor resolves employment attributes for an email. Email-level
// entries take precedence over domain-level defaults field by field.
// For bottler identities without a configured country, idpCountry (the
// country asserted by the identity provider) is used as the fallback.
func (t *Tables) RolesFor(email, idpCountry string) RoleEntry {
	email = strings.ToLower(email)
	domain := emailDomain(email)

	var entry RoleEntry
	if domain != "" {
		if domainEntry, ok := t.Roles[domain]; ok {
			entry = domainEntry
		}
	}
	if emailEntry, ok := t.Roles[email]; ok {
		if emailEntry.EmploymentType != "" {
			entry.EmploymentType = emailEntry.EmploymentType
		}
		if emailEntry.CompanyName != "" {
			entry.CompanyName = emailEntry.CompanyName
		}
		if emailEntry.Country != "" {
			entry.Country = emailEntry.Country
		}
		if len(emailEntry.Customers) > 0 {
			entry.Customers = emailEntry.Customers
		}
		if len(emailEntry.RestrictedBrands) > 0 {
			entry.RestrictedBrands = emailEntry.RestrictedBrands
		}
	}

	if entry.EmploymentType == "bottler" && entry.Country == "" {
		entry.Country = idpCountry
	}
	return entry
}

// ReviewerIdentities returns the exact-email grant holders carrying
// reviewer or manager permission.
func (t *Tables) ReviewerIdentities() []string {
	var emails []string
	for pattern, codes := range t.Grants {
		if !strings.Contains(pattern, "@") {
			continue
		}
		for _, code := range codes {
			name := code
			if long, ok := permissionAliases[code]; ok {
				name = long
			}
			if name == PermRightsReviewer || name == PermRightsManager {
				emails = append(emails, strings.ToLower(pattern))
				break
			}
		}
	}
	sort.Strings(emails)
	return emails
}

// IsReviewerOrManager reports whether the email holds reviewer or
// manager permission in the grant tables.
func (t *Tables) IsReviewerOrManager(email string) bool {
	for _, p := range t.PermissionsFor(email) {
		if p == PermRightsReviewer || p == PermRightsManager {
			return true
		}
	}
	return false
}
