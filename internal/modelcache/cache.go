// Package modelcache keys trained model artifacts by dataset fingerprint so
// a re-upload of the same (or cosmetically different) dataset skips
// retraining. This is the only shared mutable state in the pipeline.
package modelcache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sales-insights-go/internal/types"
)

// Kind names one of the three model capabilities.
type Kind string

const (
	KindForecast     Kind = "forecast"
	KindAnomaly      Kind = "anomaly"
	KindSegmentation Kind = "segmentation"
)

// Key identifies one cached artifact: same dataset shape + same capability.
type Key struct {
	Fingerprint string
	Capability  Kind
}

var (
	// ErrInsufficientData: too few samples to train anything meaningful.
	// Reported as a structured skip, never as a pipeline failure.
	ErrInsufficientData = errors.New("insufficient samples to train")

	// ErrTrainingInFlight: another caller is training this exact key.
	// Callers retry (with backoff) rather than duplicating the work.
	ErrTrainingInFlight = errors.New("training already in flight")
)

// Artifact is an opaque trained model owned by the cache. Never mutated in
// place; retraining produces a fresh one.
type Artifact any

type entry struct {
	artifact   Artifact
	trainedAt  time.Time
	expiresAt  time.Time
	lastAccess time.Time
	samples    int
}

// Result reports what GetOrTrain did alongside the artifact, so callers can
// tell a cache hit from a fresh training run.
type Result struct {
	Artifact        Artifact
	CacheHit        bool
	TrainedAt       time.Time
	TrainingSamples int
	TrainingTime    time.Duration
}

// Cache is a bounded TTL+LRU store. The clock is injected so expiry is
// testable without sleeping.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	inflight map[Key]struct{}

	ttl     time.Duration
	maxSize int
	now     func() time.Time

	hits      int64
	misses    int64
	evictions int64

	log *logrus.Entry
}

func New(ttl time.Duration, maxSize int, log *logrus.Entry) *Cache {
	return &Cache{
		entries:  make(map[Key]*entry),
		inflight: make(map[Key]struct{}),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		log:      log,
	}
}

// WithClock swaps the time source. Test hook.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// GetOrTrain returns the cached artifact for key, or trains one.
//
// State machine per key: absent → training → cached → expired. A valid
// cached entry is returned immediately. An expired entry is dropped, never
// served. On a miss with sampleCount below minSamples no training happens at
// all — ErrInsufficientData comes back instead of a degenerate model. At
// most one training run proceeds per key; concurrent callers for the same
// key get ErrTrainingInFlight.
func (c *Cache) GetOrTrain(key Key, sampleCount, minSamples int, train func() (Artifact, error)) (Result, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			e.lastAccess = c.now()
			c.hits++
			res := Result{
				Artifact:        e.artifact,
				CacheHit:        true,
				TrainedAt:       e.trainedAt,
				TrainingSamples: e.samples,
			}
			c.mu.Unlock()
			return res, nil
		}
		delete(c.entries, key)
	}
	c.misses++

	if sampleCount < minSamples {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, sampleCount, minSamples)
	}
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return Result{}, ErrTrainingInFlight
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	start := time.Now()
	artifact, err := train()
	elapsed := time.Since(start)

	c.mu.Lock()
	delete(c.inflight, key)
	if err != nil {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("train %s: %w", key.Capability, err)
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	now := c.now()
	c.entries[key] = &entry{
		artifact:   artifact,
		trainedAt:  now,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
		samples:    sampleCount,
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"capability":  string(key.Capability),
		"fingerprint": key.Fingerprint,
		"samples":     sampleCount,
		"train_ms":    elapsed.Milliseconds(),
	}).Info("model trained and cached")

	return Result{
		Artifact:        artifact,
		TrainedAt:       now,
		TrainingSamples: sampleCount,
		TrainingTime:    elapsed,
	}, nil
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports live (possibly expired, not yet collected) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats snapshots cache counters for the model_metrics block.
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return types.CacheStats{
		Entries:   len(c.entries),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRatio:  ratio,
	}
}

// evictLRU removes the least recently used entry. Caller holds the lock.
func (c *Cache) evictLRU() {
	var (
		oldestKey Key
		oldest    time.Time
		found     bool
	)
	for key, e := range c.entries {
		if !found || e.lastAccess.Before(oldest) {
			oldestKey, oldest, found = key, e.lastAccess, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions++
		c.log.WithFields(logrus.Fields{
			"capability":  string(oldestKey.Capability),
			"fingerprint": oldestKey.Fingerprint,
		}).Debug("evicted least recently used model")
	}
}
