package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldProcessFirstSeen(t *testing.T) {
	t.Parallel()

	d := New(DefaultWindow)
	require.True(t, d.ShouldProcess("msg-1"))
	require.True(t, d.ShouldProcess("msg-2"))
}

func TestShouldProcessDuplicateWithinWindow(t *testing.T) {
	t.Parallel()

	d := New(DefaultWindow)
	require.True(t, d.ShouldProcess("msg-1"))
	require.False(t, d.ShouldProcess("msg-1"))
	require.False(t, d.ShouldProcess("msg-1"))
}

func TestShouldProcessAfterWindowExpires(t *testing.T) {
	t.Parallel()

	d := New(DefaultWindow)
	current := time.Unix(1700000000, 0)
	d.now = func() time.Time { return current }

	require.True(t, d.ShouldProcess("msg-1"))

	current = current.Add(DefaultWindow + time.Second)
	require.True(t, d.ShouldProcess("msg-1"))
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	d := New(DefaultWindow)
	current := time.Unix(1700000000, 0)
	d.now = func() time.Time { return current }

	d.ShouldProcess("old")
	current = current.Add(3 * time.Minute)
	d.ShouldProcess("fresh")

	current = current.Add(2*time.Minute + time.Second)
	removed := d.Sweep()

	require.Equal(t, 1, removed)
	require.Equal(t, 1, d.Len())
	require.False(t, d.ShouldProcess("fresh"))
}
