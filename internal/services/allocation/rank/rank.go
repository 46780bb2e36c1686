// Package rank orders rule-passing mentor candidates.
// Every strategy is deterministic for a fixed (key, candidate set); the
// round-robin pointer is in-memory only and best-effort by design
package rank

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"mentormatch/internal/services/allocation/policy"
	roster "mentormatch/internal/services/roster/domain"
)

// Strategy selects the ordering policy
type Strategy string

// Supported strategies
const (
	StrategyNone    Strategy = "NONE"
	StrategyJitter  Strategy = "DETERMINISTIC_JITTER"
	StrategyBucket  Strategy = "BUCKET_ROUND_ROBIN"
	defaultWidth             = 0.1
	defaultJitter            = 0.05
)

// Config is read-only after construction
type Config struct {
	Strategy Strategy

	// BucketWidth is the occupancy-ratio width of one round-robin bucket
	BucketWidth float64

	// JitterScale bounds the hash-derived perturbation added to the ratio
	JitterScale float64
}

// Candidate pairs a mentor with the policy trace that admitted it
type Candidate struct {
	Mentor *roster.Mentor
	Trace  []policy.Step
}

// Ranker orders candidates; the winner is the head of the returned slice
type Ranker struct {
	cfg Config

	mu   sync.Mutex
	last map[string]int64 // idempotency key -> last assigned mentor id
}

// New constructs a Ranker, defaulting unset parameters
func New(cfg Config) *Ranker {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyNone
	}
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = defaultWidth
	}
	if cfg.JitterScale <= 0 {
		cfg.JitterScale = defaultJitter
	}
	return &Ranker{cfg: cfg, last: map[string]int64{}}
}

// Rank returns candidates in selection order; empty input stays empty.
// The input slice is not mutated
func (r *Ranker) Rank(key string, in []Candidate) []Candidate {
	if len(in) == 0 {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)

	switch r.cfg.Strategy {
	case StrategyJitter:
		sortByRatio(out, func(c Candidate) float64 {
			return c.Mentor.OccupancyRatio() + jitter(key, c.Mentor.ID)*r.cfg.JitterScale
		})
	case StrategyBucket:
		out = r.bucketRoundRobin(key, out)
	default:
		sortByRatio(out, func(c Candidate) float64 { return c.Mentor.OccupancyRatio() })
	}
	return out
}

// NoteAssigned records the winner for a key so the next round-robin pass
// continues past it. Best-effort; lost on restart
func (r *Ranker) NoteAssigned(key string, mentorID int64) {
	if r.cfg.Strategy != StrategyBucket {
		return
	}
	r.mu.Lock()
	r.last[key] = mentorID
	r.mu.Unlock()
}

// sortByRatio sorts ascending by (ratio, current load, mentor id)
func sortByRatio(cs []Candidate, ratio func(Candidate) float64) {
	sort.SliceStable(cs, func(i, j int) bool {
		ri, rj := ratio(cs[i]), ratio(cs[j])
		if ri != rj {
			return ri < rj
		}
		if cs[i].Mentor.CurrentLoad != cs[j].Mentor.CurrentLoad {
			return cs[i].Mentor.CurrentLoad < cs[j].Mentor.CurrentLoad
		}
		return cs[i].Mentor.ID < cs[j].Mentor.ID
	})
}

// jitter maps (key, mentor id) into [0, 1) via FNV-1a; pure and stable
func jitter(key string, mentorID int64) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", key, mentorID)
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

// bucketRoundRobin groups by occupancy bucket, orders within each bucket
// deterministically, interleaves the buckets, then rotates the sequence to
// continue after the key's last assigned mentor
func (r *Ranker) bucketRoundRobin(key string, cs []Candidate) []Candidate {
	buckets := map[int][]Candidate{}
	var idxs []int
	for _, c := range cs {
		b := int(math.Floor(c.Mentor.OccupancyRatio() / r.cfg.BucketWidth))
		if _, seen := buckets[b]; !seen {
			idxs = append(idxs, b)
		}
		buckets[b] = append(buckets[b], c)
	}
	sort.Ints(idxs)
	for _, b := range idxs {
		sortByRatio(buckets[b], func(c Candidate) float64 { return c.Mentor.OccupancyRatio() })
	}

	// take one candidate per bucket per round, emptier buckets first
	out := make([]Candidate, 0, len(cs))
	for len(out) < len(cs) {
		for _, b := range idxs {
			if len(buckets[b]) == 0 {
				continue
			}
			out = append(out, buckets[b][0])
			buckets[b] = buckets[b][1:]
		}
	}

	r.mu.Lock()
	lastID, ok := r.last[key]
	r.mu.Unlock()
	if !ok {
		return out
	}
	for i, c := range out {
		if c.Mentor.ID == lastID {
			rot := make([]Candidate, 0, len(out))
			rot = append(rot, out[i+1:]...)
			return append(rot, out[:i+1]...)
		}
	}
	return out
}
