package auth

import (
	"context"

	"github.com/2beens/contenthub/internal/admin"
)

type Capability string

const (
	CapabilityDashboard     Capability = "dashboard"
	CapabilityManageContent Capability = "manage-content"
	CapabilityManageAdmins  Capability = "manage-admins"
)

var roleCapabilities = map[string][]Capability{
	admin.RoleAdmin: {
		CapabilityDashboard,
		CapabilityManageContent,
		CapabilityManageAdmins,
	},
}

func RoleHasCapability(role string, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

type claimsCtxKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims, ok && claims != nil
}
