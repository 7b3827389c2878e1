package learning

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/planops/planagent/internal/storage"
)

// Params holds the fixed Q-learning configuration.
type Params struct {
	// LearningRate is α in the Q-learning update rule.
	LearningRate float64

	// DiscountFactor is γ, the weight of future rewards.
	DiscountFactor float64
}

// DefaultParams returns the standard learning configuration.
func DefaultParams() Params {
	return Params{
		LearningRate:   0.1,
		DiscountFactor: 0.9,
	}
}

// Policy maintains the tabular action-value function keyed by (tool, context),
// persisted through the storage layer with a read-through in-memory cache.
//
// The cache is loaded wholesale on first access and refreshed per key after
// each durable write commits, so readers never observe a cached value newer
// than the durable one.
type Policy struct {
	store  storage.Storage
	params Params

	mu     sync.RWMutex
	cache  map[string]float64
	loaded bool
}

// NewPolicy creates a policy backed by the given store.
func NewPolicy(store storage.Storage, params Params) *Policy {
	return &Policy{
		store:  store,
		params: params,
		cache:  make(map[string]float64),
	}
}

// cacheKey joins a (tool, context) pair into the cache key form.
func cacheKey(toolName, contextKey string) string {
	return toolName + ":" + contextKey
}

// splitCacheKey recovers the pair; the context digest never contains a colon,
// so the last separator is always the right one.
func splitCacheKey(key string) (toolName, contextKey string) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return key, ""
	}
	return key[:idx], key[idx+1:]
}

// ensureLoaded populates the cache from storage on first touch.
func (p *Policy) ensureLoaded() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return
	}

	entries, err := p.store.AllPolicyEntries()
	if err == nil {
		for _, entry := range entries {
			p.cache[cacheKey(entry.ToolName, entry.ContextKey)] = entry.ActionValue
		}
	}
	p.loaded = true
}

// Invalidate drops the cache so the next read reloads from storage.
func (p *Policy) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]float64)
	p.loaded = false
}

// Value returns the current action value for a (tool, context) pair, 0 if the
// pair has never been updated.
func (p *Policy) Value(toolName, contextKey string) float64 {
	p.ensureLoaded()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache[cacheKey(toolName, contextKey)]
}

// MaxValue returns the maximum action value recorded for a context, restricted
// to candidateTools when given. Contexts with no entries (or only negative
// ones) yield 0.
func (p *Policy) MaxValue(contextKey string, candidateTools []string) float64 {
	p.ensureLoaded()

	var allowed map[string]bool
	if candidateTools != nil {
		allowed = make(map[string]bool, len(candidateTools))
		for _, name := range candidateTools {
			allowed[name] = true
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	maxQ := 0.0
	for key, value := range p.cache {
		toolName, ctx := splitCacheKey(key)
		if ctx != contextKey {
			continue
		}
		if allowed != nil && !allowed[toolName] {
			continue
		}
		if value > maxQ {
			maxQ = value
		}
	}

	return maxQ
}

// Update applies the Q-learning rule for one executed action:
//
//	Q(s,a) ← Q(s,a) + α · (r + γ · max_a' Q(s',a') − Q(s,a))
//
// The future term is 0 on terminal transitions or when no next context is
// known. The entry is created at Q=0 before the update and its visit count is
// incremented. The durable row commits before the cache is refreshed.
func (p *Policy) Update(toolName, contextKey string, reward float64, nextContextKey string, candidateTools []string, terminal bool) error {
	futureValue := 0.0
	if !terminal && nextContextKey != "" {
		futureValue = p.MaxValue(nextContextKey, candidateTools)
	}

	entry, err := p.store.UpdatePolicyEntry(toolName, contextKey, func(cur storage.PolicyEntry) storage.PolicyEntry {
		tdTarget := reward + p.params.DiscountFactor*futureValue
		cur.ActionValue += p.params.LearningRate * (tdTarget - cur.ActionValue)
		cur.VisitCount++
		return cur
	})
	if err != nil {
		return fmt.Errorf("policy update failed: %w", err)
	}

	p.mu.Lock()
	p.cache[cacheKey(toolName, contextKey)] = entry.ActionValue
	p.mu.Unlock()

	return nil
}

// Confidence maps the raw action value through a logistic squashing function
// so positive values trend toward 1 and negative toward 0. An unseen pair
// yields exactly 0.5.
func (p *Policy) Confidence(toolName, contextKey string) float64 {
	value := p.Value(toolName, contextKey)
	return 1.0 / (1.0 + math.Exp(-value/5.0))
}

// RetroactiveAdjust revises the action value for the (tool, context) of a
// previously finalized execution after a late rating arrives. The adjustment
// is the reward delta between "rated" and "unrated", scaled by the learning
// rate, applied directly: no discounting and no visit-count increment.
//
// Returns false when the record does not exist, carries no context key, or has
// no policy entry to adjust.
func (p *Policy) RetroactiveAdjust(recordID int64, newRating int) (bool, error) {
	rec, err := p.store.GetExecution(recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if rec.ContextKey == "" {
		return false, nil
	}

	if _, err := p.store.GetPolicyEntry(rec.ToolName, rec.ContextKey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	newReward := Reward(rec.Success, newRating, rec.LatencyMS, 0)
	oldReward := Reward(rec.Success, 0, rec.LatencyMS, 0)
	delta := newReward - oldReward

	entry, err := p.store.UpdatePolicyEntry(rec.ToolName, rec.ContextKey, func(cur storage.PolicyEntry) storage.PolicyEntry {
		cur.ActionValue += p.params.LearningRate * delta
		return cur
	})
	if err != nil {
		return false, fmt.Errorf("retroactive adjustment failed: %w", err)
	}

	p.mu.Lock()
	p.cache[cacheKey(rec.ToolName, rec.ContextKey)] = entry.ActionValue
	p.mu.Unlock()

	return true, nil
}

// LogEpisode records a finalized session. Terminal-state credit must be
// applied separately via Update(..., terminal=true) before calling this.
func (p *Policy) LogEpisode(sessionID string, toolSequence []string, episodeReward float64, outcome string) error {
	return p.store.LogEpisode(storage.Episode{
		SessionID:     sessionID,
		ToolSequence:  toolSequence,
		EpisodeReward: episodeReward,
		Outcome:       outcome,
	})
}

// CachedValues returns a copy of the in-memory policy table, used by the
// reporting endpoints for aggregate statistics.
func (p *Policy) CachedValues() map[string]float64 {
	p.ensureLoaded()

	p.mu.RLock()
	defer p.mu.RUnlock()

	values := make(map[string]float64, len(p.cache))
	for key, value := range p.cache {
		values[key] = value
	}
	return values
}
