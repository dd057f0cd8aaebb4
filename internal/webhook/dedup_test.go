package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewEventDeduper(nil, time.Hour)

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	// Looking does not mark.
	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, "evt_1"))
	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryDeduperExpires(t *testing.T) {
	ctx := context.Background()
	d := newMemoryEventDeduper(10 * time.Millisecond)

	require.NoError(t, d.Remember(ctx, "evt_1"))
	time.Sleep(20 * time.Millisecond)
	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
