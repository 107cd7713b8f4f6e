package access

import (
	"reflect"
	"testing"
)

func testTables() *Tables {
	return &Tables{
		AllowedDomains: []string{"example.com", "partner.org"},
		Grants: map[string][]string{
			"*":                    {"preview"},
			"example.com":          {},
			"reviewer@example.com": {"rr"},
			"manager@example.com":  {"rm", "rr"},
			"admin@example.com":    {"ra", "sudo"},
		},
		Roles: map[string]RoleEntry{
			"example.com": {
				EmploymentType: "employee",
				CompanyName:    "Example Co",
				Country:        "US",
			},
			"bottler@example.com": {
				EmploymentType: "bottler",
				CompanyName:    "Bottler Inc",
			},
			"vendor@example.com": {
				CompanyName: "Vendor LLC",
				Customers:   []string{"acme"},
			},
		},
	}
}

func TestPermissionsFor(t *testing.T) {
	tables := testTables()

	tests := []struct {
		name  string
		email string
		want  []string
	}{
		{
			name:  "domain member gets wildcard grants only",
			email: "someone@example.com",
			want:  []string{"preview"},
		},
		{
			name:  "email grants union with wildcard, aliases expanded",
			email: "reviewer@example.com",
			want:  []string{"preview", "rights-reviewer"},
		},
		{
			name:  "duplicate codes collapse",
			email: "manager@example.com",
			want:  []string{"preview", "rights-manager", "rights-reviewer"},
		},
		{
			name:  "email matching is case-insensitive",
			email: "Reviewer@Example.COM",
			want:  []string{"preview", "rights-reviewer"},
		},
		{
			name:  "unknown domain still matches wildcard",
			email: "nobody@elsewhere.net",
			want:  []string{"preview"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tables.PermissionsFor(tt.email)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PermissionsFor(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestPermissionsForNoMatch(t *testing.T) {
	tables := &Tables{
		Grants: map[string][]string{
			"example.com": {"rr"},
		},
	}

	if got := tables.PermissionsFor("nobody@elsewhere.net"); got != nil {
		t.Errorf("expected nil for unmatched email, got %v", got)
	}
}

func TestPermissionsForEmptyGrantEntry(t *testing.T) {
	// A matching entry with no codes is still a grant: access with an
	// empty permission set, distinct from no match at all.
	tables := &Tables{
		Grants: map[string][]string{
			"example.com": {},
		},
	}

	got := tables.PermissionsFor("user@example.com")
	if got == nil {
		t.Fatal("expected non-nil empty set for matched entry")
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestDomainAllowed(t *testing.T) {
	tables := testTables()

	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"user@EXAMPLE.com", true},
		{"user@partner.org", true},
		{"user@elsewhere.net", false},
		{"no-at-sign", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tables.DomainAllowed(tt.email); got != tt.want {
			t.Errorf("DomainAllowed(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestRolesFor(t *testing.T) {
	tables := testTables()

	t.Run("email overrides domain field by field", func(t *testing.T) {
		entry := tables.RolesFor("vendor@example.com", "")
		if entry.CompanyName != "Vendor LLC" {
			t.Errorf("expected email-level company, got %q", entry.CompanyName)
		}
		if entry.EmploymentType != "employee" {
			t.Errorf("expected domain-level employment type, got %q", entry.EmploymentType)
		}
		if entry.Country != "US" {
			t.Errorf("expected domain-level country, got %q", entry.Country)
		}
		if len(entry.Customers) != 1 || entry.Customers[0] != "acme" {
			t.Errorf("expected email-level customers, got %v", entry.Customers)
		}
	})

	t.Run("bottler without country falls back to idp country", func(t *testing.T) {
		tables := &Tables{
			Roles: map[string]RoleEntry{
				"bottler@plant.example": {EmploymentType: "bottler"},
			},
		}
		entry := tables.RolesFor("bottler@plant.example", "BR")
		if entry.Country != "BR" {
			t.Errorf("expected idp country fallback, got %q", entry.Country)
		}
	})

	t.Run("no entries yields zero value", func(t *testing.T) {
		entry := (&Tables{}).RolesFor("nobody@nowhere.net", "DE")
		if entry.EmploymentType != "" || entry.Country != "" {
			t.Errorf("expected zero entry, got %+v", entry)
		}
	})
}

func TestReviewerIdentities(t *testing.T) {
	tables := testTables()

	got := tables.ReviewerIdentities()
	want := []string{"manager@example.com", "reviewer@example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReviewerIdentities() = %v, want %v", got, want)
	}
}

func TestIsReviewerOrManager(t *testing.T) {
	tables := testTables()

	tests := []struct {
		email string
		want  bool
	}{
		{"reviewer@example.com", true},
		{"manager@example.com", true},
		{"admin@example.com", false},
		{"someone@example.com", false},
	}

	for _, tt := range tests {
		if got := tables.IsReviewerOrManager(tt.email); got != tt.want {
			t.Errorf("IsReviewerOrManager(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}
