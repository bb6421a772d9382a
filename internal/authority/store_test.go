package authority

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	seen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Upsert(ctx, Device{ID: 0xff, Role: role.Zombie, Status: match.StatusPlaying, Health: 400, LastSeen: seen}))
	require.NoError(t, s.Upsert(ctx, Device{ID: 0x01, Role: role.Human, Status: match.StatusPregame, Health: 1000, Battery: 87.5, LastSeen: seen}))
	require.NoError(t, s.Upsert(ctx, Device{ID: 0xff, Role: role.Human, Status: match.StatusPregame, Health: 1000, LastSeen: seen.Add(time.Second)}))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0x01), got[0].ID)
	assert.Equal(t, 87.5, got[0].Battery)
	assert.Equal(t, role.Human, got[1].Role, "upsert replaces the row")
	assert.True(t, got[1].LastSeen.Equal(seen.Add(time.Second)))

	require.NoError(t, s.Clear(ctx))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestGormStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := OpenGormStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestOpenGormStoreNeedsURL(t *testing.T) {
	_, err := OpenGormStore("")
	assert.ErrorIs(t, err, ErrNoDatabase)
}
