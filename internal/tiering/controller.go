package tiering

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vectorkeep/vectorkeep/internal/logging"
)

// Hooks performs the actual tier-transition IO. Controller only decides
// when a transition should happen and serializes it per collection; the
// owning engine supplies what a transition does (snapshot persist/load,
// ANN graph swap-in/out).
type Hooks interface {
	DemoteToWarm(ctx context.Context, collectionID [16]byte) error
	DemoteToCold(ctx context.Context, collectionID [16]byte) error
	PromoteToHot(ctx context.Context, collectionID [16]byte) error
}

// Policy bundles the tiering thresholds.
type Policy struct {
	HotTTL       time.Duration
	WarmTTL      time.Duration
	HotThreshold int64
}

// Controller runs Policy on a tick, evaluating every tracked collection's
// State and invoking Hooks for whichever transitions are due.
type Controller struct {
	policy  Policy
	hooks   Hooks
	tracker *accessTracker
	logger  logging.Logger

	mu     sync.RWMutex
	states map[[16]byte]*State

	stop chan struct{}
	done chan struct{}
}

// NewController builds a Controller. Call Start to run its background loop.
func NewController(policy Policy, hooks Hooks, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Controller{
		policy:  policy,
		hooks:   hooks,
		tracker: newAccessTracker(),
		logger:  logger,
		states:  make(map[[16]byte]*State),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Track registers collectionID with the controller, starting in the Hot
// tier. Calling Track twice for the same id is a no-op.
func (c *Controller) Track(collectionID [16]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[collectionID]; ok {
		return
	}
	c.states[collectionID] = NewState(collectionID)
}

// Untrack drops collectionID's state, e.g. on DeleteCollection.
func (c *Controller) Untrack(collectionID [16]byte) {
	c.mu.Lock()
	delete(c.states, collectionID)
	c.mu.Unlock()
	c.tracker.Forget(collectionID)
}

// State returns a snapshot of collectionID's tier state, ok false if
// untracked.
func (c *Controller) State(collectionID [16]byte) (State, bool) {
	c.mu.RLock()
	st, ok := c.states[collectionID]
	c.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	return st.Snapshot(), true
}

// Pin marks collectionID as never auto-demoted.
func (c *Controller) Pin(collectionID [16]byte, pinned bool) {
	c.mu.RLock()
	st, ok := c.states[collectionID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	st.Lock()
	st.Pinned = pinned
	st.Unlock()
}

// RecordAccess records a query/read against collectionID, updating access
// recency/frequency. If the collection is in Warm or Cold and its
// trailing-hour access count has reached the hot threshold, it is promoted
// to Hot synchronously — the call blocks on the load, matching the
// semantics of a request-triggered promotion.
func (c *Controller) RecordAccess(ctx context.Context, collectionID [16]byte) error {
	now := time.Now()
	c.tracker.RecordAccess(collectionID, now)

	c.mu.RLock()
	st, ok := c.states[collectionID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	st.Lock()
	st.LastAccessed = now
	st.AccessCount++
	if now.Sub(st.windowStart) > time.Hour {
		st.windowStart = now
		st.windowCount = 0
	}
	st.windowCount++
	shouldPromote := st.Tier != TierHot && st.windowCount >= c.policy.HotThreshold
	st.Unlock()

	if !shouldPromote {
		return nil
	}
	return c.promote(ctx, st)
}

// promote runs PromoteToHot while holding st's lock for the duration, so a
// concurrent tick can't also try to transition the same collection.
func (c *Controller) promote(ctx context.Context, st *State) error {
	st.Lock()
	defer st.Unlock()
	if st.Tier == TierHot {
		return nil
	}
	if err := c.hooks.PromoteToHot(ctx, st.CollectionID); err != nil {
		return err
	}
	st.Tier = TierHot
	st.SnapshotID = ""
	st.WarmFilePath = ""
	st.windowStart = time.Time{}
	st.windowCount = 0
	return nil
}

// Start launches the background ticker loop. Call Stop to halt it.
func (c *Controller) Start(ctx context.Context, interval time.Duration) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				if err := c.tick(ctx); err != nil {
					c.logger.Warn("tiering tick failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the background loop and waits for the in-flight tick, if any,
// to finish.
func (c *Controller) Stop() {
	close(c.stop)
	<-c.done
}

// tick evaluates every tracked collection concurrently, serializing only
// the transition for each individual collection.
func (c *Controller) tick(ctx context.Context) error {
	c.mu.RLock()
	states := make([]*State, 0, len(c.states))
	for _, st := range c.states {
		states = append(states, st)
	}
	c.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		st := st
		g.Go(func() error {
			return c.evaluate(gctx, st)
		})
	}
	return g.Wait()
}

func (c *Controller) evaluate(ctx context.Context, st *State) error {
	st.Lock()
	defer st.Unlock()

	now := time.Now()
	switch st.Tier {
	case TierHot:
		if !st.Pinned && now.Sub(st.LastAccessed) > c.policy.HotTTL {
			if err := c.hooks.DemoteToWarm(ctx, st.CollectionID); err != nil {
				return err
			}
			st.Tier = TierWarm
		}
	case TierWarm:
		if !st.Pinned && now.Sub(st.LastAccessed) > c.policy.WarmTTL {
			if err := c.hooks.DemoteToCold(ctx, st.CollectionID); err != nil {
				return err
			}
			st.Tier = TierCold
		}
	case TierCold:
		// Cold collections are promoted synchronously on access
		// (RecordAccess), never by the background tick.
	}
	return nil
}
