package identity

import (
	"time"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// Custom claim keys written to provider accounts.
const (
	ClaimRole        = "role"
	ClaimStatus      = "status"
	ClaimCompanyName = "company_name"
	ClaimPhone       = "phone"
	ClaimApprovedBy  = "approved_by"
	ClaimApprovedAt  = "approved_at"
)

// ApprovalClaims builds the metadata tagged onto an approved client account.
func ApprovalClaims(companyName, phone, approvedBy string, approvedAt time.Time) map[string]any {
	claims := map[string]any{
		ClaimRole:        string(enums.RoleClient),
		ClaimStatus:      string(enums.AccountStatusApproved),
		ClaimCompanyName: companyName,
		ClaimApprovedBy:  approvedBy,
		ClaimApprovedAt:  approvedAt.UTC().Format(time.RFC3339),
	}
	if phone != "" {
		claims[ClaimPhone] = phone
	}
	return claims
}

// WithStatus copies claims and overrides the status claim.
func WithStatus(claims map[string]any, status enums.AccountStatus) map[string]any {
	return Merge(claims, map[string]any{ClaimStatus: string(status)})
}

// Merge copies base and overlays updates. Keys only present in base survive.
func Merge(base, updates map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// RoleOf reads the role claim. Accounts without one return the empty role.
func RoleOf(claims map[string]any) enums.Role {
	role, _ := claims[ClaimRole].(string)
	return enums.Role(role)
}
