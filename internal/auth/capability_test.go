package auth_test

import (
	"context"
	"testing"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleHasCapability(t *testing.T) {
	for _, c := range []auth.Capability{
		auth.CapabilityDashboard,
		auth.CapabilityManageContent,
		auth.CapabilityManageAdmins,
	} {
		assert.True(t, auth.RoleHasCapability(admin.RoleAdmin, c), c)
		assert.False(t, auth.RoleHasCapability("", c), c)
		assert.False(t, auth.RoleHasCapability("editor", c), c)
	}
	assert.False(t, auth.RoleHasCapability(admin.RoleAdmin, "launch-rockets"))
}

func TestClaimsContext(t *testing.T) {
	claims, ok := auth.ClaimsFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, claims)

	ctx := auth.ContextWithClaims(context.Background(), &auth.Claims{AdminID: "a-1"})
	claims, ok = auth.ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "a-1", claims.AdminID)
}
