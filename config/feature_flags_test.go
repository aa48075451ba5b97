package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_POINTS_ACTIVITY", "false")

	ff := LoadFeatureFlags(map[string]string{FeatureActivityPoints: "true"})
	assert.False(t, ff.IsEnabled(FeatureActivityPoints, nil))
	assert.True(t, ff.IsEnabled(FeatureExternalNotifications, nil))
	assert.False(t, ff.IsEnabled("no.such.feature", nil))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	ff := LoadFeatureFlags(nil)
	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardCache, 50))

	enabled := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{UserID: fmt.Sprintf("user-%d", i)}
		first := ff.IsEnabled(FeatureLeaderboardCache, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureLeaderboardCache, ctx))
		if first {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 200)
}

func TestFeatureFlags_OverridesAndAdmin(t *testing.T) {
	ff := LoadFeatureFlags(nil)
	require.NoError(t, ff.DisableFeature(FeatureReconcileAwards))

	assert.False(t, ff.IsEnabled(FeatureReconcileAwards, &FeatureContext{UserID: "u1"}))
	assert.True(t, ff.IsEnabled(FeatureReconcileAwards, &FeatureContext{UserID: "u1", IsAdmin: true}))

	ff.SetUserOverride("u1", FeatureReconcileAwards, true)
	assert.True(t, ff.IsEnabled(FeatureReconcileAwards, &FeatureContext{UserID: "u1"}))
	ff.ClearUserOverrides("u1")
	assert.False(t, ff.IsEnabled(FeatureReconcileAwards, &FeatureContext{UserID: "u1"}))

	assert.ErrorIs(t, ff.SetRolloutPercent("missing", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureReconcileAwards, 101), ErrInvalidRolloutPercent)
}
