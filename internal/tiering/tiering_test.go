package tiering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHooks struct {
	mu            sync.Mutex
	demotedToWarm [][16]byte
	demotedToCold [][16]byte
	promoted      [][16]byte
	promoteErr    error
}

func (f *fakeHooks) DemoteToWarm(_ context.Context, id [16]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demotedToWarm = append(f.demotedToWarm, id)
	return nil
}

func (f *fakeHooks) DemoteToCold(_ context.Context, id [16]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.demotedToCold = append(f.demotedToCold, id)
	return nil
}

func (f *fakeHooks) PromoteToHot(_ context.Context, id [16]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.promoted = append(f.promoted, id)
	return nil
}

func TestTrackStartsHot(t *testing.T) {
	hooks := &fakeHooks{}
	c := NewController(Policy{HotTTL: time.Hour, WarmTTL: 24 * time.Hour, HotThreshold: 10}, hooks, nil)
	id := [16]byte{1}
	c.Track(id)

	st, ok := c.State(id)
	require.True(t, ok)
	assert.Equal(t, TierHot, st.Tier)
}

func TestTickDemotesStaleHotToWarm(t *testing.T) {
	hooks := &fakeHooks{}
	c := NewController(Policy{HotTTL: time.Millisecond, WarmTTL: time.Hour, HotThreshold: 10}, hooks, nil)
	id := [16]byte{2}
	c.Track(id)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.tick(context.Background()))

	st, _ := c.State(id)
	assert.Equal(t, TierWarm, st.Tier)
	assert.Len(t, hooks.demotedToWarm, 1)
}

func TestPinnedNeverDemoted(t *testing.T) {
	hooks := &fakeHooks{}
	c := NewController(Policy{HotTTL: time.Millisecond, WarmTTL: time.Hour, HotThreshold: 10}, hooks, nil)
	id := [16]byte{3}
	c.Track(id)
	c.Pin(id, true)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.tick(context.Background()))

	st, _ := c.State(id)
	assert.Equal(t, TierHot, st.Tier)
}

func TestRecordAccessPromotesAfterThreshold(t *testing.T) {
	hooks := &fakeHooks{}
	c := NewController(Policy{HotTTL: time.Millisecond, WarmTTL: time.Hour, HotThreshold: 3}, hooks, nil)
	id := [16]byte{4}
	c.Track(id)

	// force into Warm first
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.tick(context.Background()))
	st, _ := c.State(id)
	require.Equal(t, TierWarm, st.Tier)

	ctx := context.Background()
	require.NoError(t, c.RecordAccess(ctx, id))
	require.NoError(t, c.RecordAccess(ctx, id))
	require.NoError(t, c.RecordAccess(ctx, id)) // 3rd access crosses threshold

	st, _ = c.State(id)
	assert.Equal(t, TierHot, st.Tier)
	assert.Len(t, hooks.promoted, 1)
}

func TestUntrackRemovesState(t *testing.T) {
	hooks := &fakeHooks{}
	c := NewController(Policy{HotTTL: time.Hour, WarmTTL: time.Hour, HotThreshold: 10}, hooks, nil)
	id := [16]byte{5}
	c.Track(id)
	c.Untrack(id)

	_, ok := c.State(id)
	assert.False(t, ok)
}
