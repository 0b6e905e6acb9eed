package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/formgate/internal/app"
	_ "github.com/formgate/formgate/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "admin", cfg.RBACRootRole)
	assert.Equal(t, "staff", cfg.FormReviewRole)
	assert.Equal(t, 24*time.Hour, cfg.FollowUpDelay)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RBAC_ROOT_ROLE", "superuser")
	t.Setenv("APP_ENV", "production")
	t.Setenv("FORM_REVIEW_ROLE", "reviewer")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "superuser", cfg.RBACRootRole)
	assert.Equal(t, "reviewer", cfg.FormReviewRole)
	assert.True(t, cfg.IsProduction())
}

func TestTestModeDetection(t *testing.T) {
	t.Setenv("FORMGATE_TEST_MODE", "1")
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())

	t.Setenv("FORMGATE_TEST_MODE", "")
	app.RefreshTestMode()
	assert.False(t, app.InTestMode())
}