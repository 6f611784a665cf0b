// Package batcher turns one run's raw health events into bounded,
// time-contiguous, single-status batches ready for the analysis provider.
// Everything here is pure and deterministic.
package batcher

import (
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yungbote/habitlens-backend/internal/types"
)

// Config controls one batching run.
type Config struct {
	// IncludeStatuses, when non-empty, keeps only events whose normalized
	// status is listed. It takes precedence over ExcludeNormal.
	IncludeStatuses []string
	// ExcludeNormal drops events whose normalized status is exactly
	// "normal". Empty or missing status is retained.
	ExcludeNormal bool
	// TimeGap is the maximum gap between consecutive events of one episode.
	TimeGap time.Duration
	// MaxBatchSize bounds the number of events per batch.
	MaxBatchSize int
	// ForceStatusOutput, when set, relabels every event's status in the
	// output only. It does not affect filtering or grouping.
	ForceStatusOutput string
}

// DefaultConfig mirrors the production defaults: exclude normal events,
// 5 minute episode gap, 20 events per batch.
func DefaultConfig() Config {
	return Config{
		ExcludeNormal: true,
		TimeGap:       5 * time.Minute,
		MaxBatchSize:  20,
	}
}

func (c Config) withDefaults() Config {
	if c.TimeGap <= 0 {
		c.TimeGap = 5 * time.Minute
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 20
	}
	return c
}

// normalized carries the computed fields used during grouping. They are
// stripped before anything leaves this package.
type normalized struct {
	event  types.HealthEvent
	status string
	ts     time.Time
	conf   float64
}

// BatchUserEvents runs the full batching algorithm for a single user's
// events and returns the batches in episode order per status group.
func BatchUserEvents(userID string, events []types.HealthEvent, cfg Config) []types.Batch {
	cfg = cfg.withDefaults()

	norm := normalize(events)
	norm = filter(norm, cfg)

	// Group by normalized status; empty status is its own group.
	groups := make(map[string][]normalized)
	var order []string
	for _, n := range norm {
		if _, ok := groups[n.status]; !ok {
			order = append(order, n.status)
		}
		groups[n.status] = append(groups[n.status], n)
	}
	sort.Strings(order)

	var batches []types.Batch
	for _, status := range order {
		group := groups[status]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].ts.Before(group[j].ts)
		})
		for _, episode := range splitEpisodes(group, cfg.TimeGap) {
			for _, chunk := range chunk(episode, cfg.MaxBatchSize) {
				batches = append(batches, types.Batch{
					UserID: userID,
					Events: strip(chunk, cfg),
				})
			}
		}
	}
	return batches
}

// BatchAllUsers batches every user's events independently, attaches the
// user's supplement snapshot, and globally sorts the concatenated batches by
// the first event's detection time. A batch whose leading timestamp is
// unusable (zero) sorts first.
func BatchAllUsers(eventsByUser map[string][]types.HealthEvent, supplements map[string]*types.Supplement, cfg Config) []types.Batch {
	userIDs := make([]string, 0, len(eventsByUser))
	for id := range eventsByUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	var all []types.Batch
	for _, id := range userIDs {
		batches := BatchUserEvents(id, eventsByUser[id], cfg)
		for i := range batches {
			batches[i].Supplement = supplements[id]
		}
		all = append(all, batches...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return leadTime(all[i]).Before(leadTime(all[j]))
	})
	return all
}

func leadTime(b types.Batch) time.Time {
	if len(b.Events) == 0 {
		return time.Time{}
	}
	return b.Events[0].Timestamp()
}

func normalize(events []types.HealthEvent) []normalized {
	out := make([]normalized, 0, len(events))
	for _, e := range events {
		out = append(out, normalized{
			event:  e,
			status: strings.ToLower(strings.TrimSpace(e.Status)),
			ts:     e.Timestamp(),
			conf:   CoerceConfidence(e.ConfidenceScore),
		})
	}
	return out
}

func filter(norm []normalized, cfg Config) []normalized {
	out := norm[:0:0]
	for _, n := range norm {
		if n.ts.IsZero() {
			continue
		}
		if len(cfg.IncludeStatuses) > 0 {
			if !statusListed(n.status, cfg.IncludeStatuses) {
				continue
			}
		} else if cfg.ExcludeNormal && n.status == types.StatusNormal {
			// Only an explicit "normal" is dropped here; empty or
			// missing status is retained.
			continue
		}
		out = append(out, n)
	}
	return out
}

func statusListed(status string, list []string) bool {
	for _, s := range list {
		if strings.ToLower(strings.TrimSpace(s)) == status {
			return true
		}
	}
	return false
}

// splitEpisodes cuts a time-sorted group wherever the gap between
// consecutive events exceeds maxGap.
func splitEpisodes(group []normalized, maxGap time.Duration) [][]normalized {
	if len(group) == 0 {
		return nil
	}
	var episodes [][]normalized
	current := []normalized{group[0]}
	for _, n := range group[1:] {
		prev := current[len(current)-1]
		if n.ts.Sub(prev.ts) > maxGap {
			episodes = append(episodes, current)
			current = []normalized{n}
			continue
		}
		current = append(current, n)
	}
	return append(episodes, current)
}

func chunk(episode []normalized, size int) [][]normalized {
	var chunks [][]normalized
	for len(episode) > size {
		chunks = append(chunks, episode[:size])
		episode = episode[size:]
	}
	return append(chunks, episode)
}

// strip materializes output events with the computed fields applied and the
// grouping internals discarded. Status carries the normalized (or forced)
// label; confidence carries the coerced float.
func strip(episode []normalized, cfg Config) []types.HealthEvent {
	out := make([]types.HealthEvent, 0, len(episode))
	for _, n := range episode {
		e := n.event
		e.Status = n.status
		if cfg.ForceStatusOutput != "" {
			e.Status = cfg.ForceStatusOutput
		}
		e.ConfidenceScore = n.conf
		out = append(out, e)
	}
	return out
}

// CoerceConfidence accepts a confidence score as a float, an int, a numeric
// string, a json.Number, or any decimal-like value exposing ToNumber().
// Anything else coerces to zero.
func CoerceConfidence(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case types.Number:
		return x.ToNumber()
	default:
		return 0
	}
}
