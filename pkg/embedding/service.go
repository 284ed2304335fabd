package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	zLog "github.com/iceymoss/discovery-engine/pkg/logger"
	"github.com/iceymoss/discovery-engine/pkg/xerr"

	"go.uber.org/zap"
)

// ServiceOptions tunes the cached embedding service.
type ServiceOptions struct {
	// Remote is the shared L2 cache tier. Nil means memory-only.
	Remote CacheBackend

	// Memory is the bounded L1 tier. A default is created when nil.
	Memory *MemoryCache

	// TTL for remote entries. Default 7 days.
	TTL time.Duration

	// Workers bounds concurrent model calls during a batch. Default 4.
	Workers int
}

// Stats are cumulative cache counters for one Service instance.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	RemoteErrors int64 `json:"remote_errors"`
}

// Service wraps an Embedder with namespace-partitioned two-tier caching.
// Writes are idempotent: two workers missing on the same key and computing
// concurrently is wasteful but correct.
type Service struct {
	embedder Embedder
	remote   CacheBackend
	memory   *MemoryCache
	ttl      time.Duration
	workers  int

	hits         atomic.Int64
	misses       atomic.Int64
	remoteErrors atomic.Int64
}

func NewService(embedder Embedder, opts ServiceOptions) *Service {
	if opts.Memory == nil {
		opts.Memory = NewMemoryCache(0)
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Service{
		embedder: embedder,
		remote:   opts.Remote,
		memory:   opts.Memory,
		ttl:      opts.TTL,
		workers:  opts.Workers,
	}
}

// CacheKey hashes (namespace, normalized text). Identical inputs always map
// to the same key, which is what makes cached lookups deterministic.
func CacheKey(ns Namespace, text string) string {
	h := sha256.New()
	h.Write([]byte(ns))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize collapses whitespace and lowercases so trivially different
// renderings of the same text share one cache entry.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Embed returns the vector for one text, from cache when possible.
func (s *Service) Embed(ctx context.Context, ns Namespace, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, ns, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns vectors for texts in input order. Repeated texts within
// the batch are deduplicated before the model is invoked. A model failure is
// fatal for the whole call; remote-cache failures only degrade to L1.
func (s *Service) EmbedBatch(ctx context.Context, ns Namespace, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))

	// Dedupe: unique key -> positions in the input.
	positions := make(map[string][]int, len(texts))
	keyText := make(map[string]string, len(texts))
	var missKeys []string
	for i, text := range texts {
		key := CacheKey(ns, text)
		if _, seen := positions[key]; !seen {
			keyText[key] = text
			if vec, ok := s.lookup(ctx, key); ok {
				result[i] = vec
			} else {
				missKeys = append(missKeys, key)
			}
		}
		positions[key] = append(positions[key], i)
	}

	if len(missKeys) > 0 {
		if err := s.computeMisses(ctx, ns, missKeys, keyText, positions, result); err != nil {
			return nil, err
		}
	}

	// Fan cached/computed vectors out to every position of each unique text.
	for _, idxs := range positions {
		first := idxs[0]
		for _, i := range idxs[1:] {
			result[i] = result[first]
		}
	}
	return result, nil
}

// computeMisses runs the model over cache misses through a bounded worker
// pool, chunked so each worker issues one batched model call.
func (s *Service) computeMisses(ctx context.Context, ns Namespace, missKeys []string,
	keyText map[string]string, positions map[string][]int, result [][]float32) error {

	chunkSize := (len(missKeys) + s.workers - 1) / s.workers
	if chunkSize < 1 {
		chunkSize = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(missKeys); start += chunkSize {
		end := start + chunkSize
		if end > len(missKeys) {
			end = len(missKeys)
		}
		chunk := missKeys[start:end]

		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			chunkTexts := make([]string, len(keys))
			for i, key := range keys {
				chunkTexts[i] = keyText[key]
			}
			vecs, err := s.embedder.EmbedBatch(ctx, chunkTexts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = xerr.Wrap(xerr.ErrEmbedFailed, fmt.Sprintf("embed batch (%s)", ns), err)
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			for i, key := range keys {
				result[positions[key][0]] = vecs[i]
			}
			mu.Unlock()
			for i, key := range keys {
				s.store(ctx, key, vecs[i])
			}
		}(chunk)
	}
	wg.Wait()
	return firstErr
}

// lookup checks L1 then L2, promoting remote hits into L1.
func (s *Service) lookup(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := s.memory.Get(key); ok {
		s.hits.Add(1)
		return vec, true
	}
	if s.remote != nil {
		vec, ok, err := s.remote.Get(ctx, key)
		if err != nil {
			s.remoteErrors.Add(1)
			zLog.Debug("embedding remote cache get failed", zap.Error(err))
		} else if ok {
			s.hits.Add(1)
			s.memory.Set(key, vec)
			return vec, true
		}
	}
	s.misses.Add(1)
	return nil, false
}

// store writes both tiers. Remote failure is silent degradation, never fatal.
func (s *Service) store(ctx context.Context, key string, vec []float32) {
	s.memory.Set(key, vec)
	if s.remote != nil {
		if err := s.remote.Set(ctx, key, vec, s.ttl); err != nil {
			s.remoteErrors.Add(1)
			zLog.Debug("embedding remote cache set failed", zap.Error(err))
		}
	}
}

func (s *Service) Stats() Stats {
	return Stats{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		RemoteErrors: s.remoteErrors.Load(),
	}
}

func (s *Service) Dimension() int { return s.embedder.Dimension() }
