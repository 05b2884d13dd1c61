// TransitBook | 2026
// authorizer.go

package auth

import (
	"time"
)

const (
	RoleClient     = "CLIENT"
	RoleDriver     = "DRIVER"
	RoleAdmin      = "ADMIN"
	RoleBlogEditor = "BLOG_EDITOR"
)

// RoleGrant is the authorization view of a role assignment. A user holds
// a capability set, not a single current role: callers that need one
// operating context (a dashboard rendering a single role's view) pass a
// selected role separately from this check.
type RoleGrant struct {
	Role     string
	IsActive bool
}

func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleDriver, RoleAdmin, RoleBlogEditor:
		return true
	default:
		return false
	}
}

func HasRole(grants []RoleGrant, required string) bool {
	for _, g := range grants {
		if g.Role == required && g.IsActive {
			return true
		}
	}
	return false
}

func ActiveRoles(grants []RoleGrant) []string {
	roles := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.IsActive {
			roles = append(roles, g.Role)
		}
	}
	return roles
}

type DocumentState string

const (
	DocumentMissing  DocumentState = "missing"
	DocumentPending  DocumentState = "pending"
	DocumentApproved DocumentState = "approved"
	DocumentRejected DocumentState = "rejected"
)

// DriverDocument is one uploaded verification document. Re-uploads of
// the same type are separate rows; only the most recent one counts.
type DriverDocument struct {
	Type       string
	Status     DocumentState
	UploadedAt time.Time
}

type VerificationReport struct {
	Complete  bool                     `json:"complete"`
	Documents map[string]DocumentState `json:"documents"`
}

// VerifyDocuments classifies each required document type by the latest
// upload of that type. Completeness requires every required type to be
// approved.
func VerifyDocuments(
	docs []DriverDocument,
	required []string,
) VerificationReport {
	latest := make(map[string]DriverDocument, len(required))
	for _, doc := range docs {
		current, seen := latest[doc.Type]
		if !seen || doc.UploadedAt.After(current.UploadedAt) {
			latest[doc.Type] = doc
		}
	}

	report := VerificationReport{
		Complete:  true,
		Documents: make(map[string]DocumentState, len(required)),
	}

	for _, docType := range required {
		doc, uploaded := latest[docType]
		if !uploaded {
			report.Documents[docType] = DocumentMissing
			report.Complete = false
			continue
		}

		report.Documents[docType] = doc.Status
		if doc.Status != DocumentApproved {
			report.Complete = false
		}
	}

	return report
}

// RequiredDriverDocuments is the document set a driver account must have
// approved before taking bookings.
var RequiredDriverDocuments = []string{
	"drivers_license",
	"vehicle_registration",
	"insurance_certificate",
}
