package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciencedream/jukustream/app/models"
)

func TestPayoutFor(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{total: 0, want: 0},
		{total: 10000, want: 3000},
		{total: 12000, want: 3600},
		{total: 1, want: 0},
		{total: 5, want: 2},   // 1.5 rounds up
		{total: 99, want: 30}, // 29.7 rounds up
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, PayoutFor(tc.total), "total=%d", tc.total)
	}
}

func TestBuildAndRender(t *testing.T) {
	juku := &models.Juku{Name: "Sakura Juku", Code: "sakura-01"}

	inv := Build(juku, 2026, 7, 14, 120000)
	assert.Equal(t, int64(36000), inv.Payout)
	assert.Equal(t, "Payout statement 2026-07 - Sakura Juku", inv.Subject())

	html, err := inv.RenderHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "Sakura Juku")
	assert.Contains(t, html, "sakura-01")
	assert.Contains(t, html, "36000")
	assert.Contains(t, html, "2026-07")
}
