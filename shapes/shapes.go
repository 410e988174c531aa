// Package shapes picks canonical stop sequences for a route's
// directions. The trips in a direction usually follow a handful of
// shape variants; the most traveled variant wins, and variants whose
// stop sequence is contained in another's collapse into it.
package shapes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

// Variant is a candidate stop sequence for a direction, weighted by
// the number of trips following it. StopIDs hold normalized ids.
type Variant struct {
	ShapeID string
	Count   int
	StopIDs []string
}

// canonicalKey fingerprints a stop sequence.
func canonicalKey(stopIDs []string) string {
	buf, _ := json.Marshal(stopIDs)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func stopSequence(f *feed.Feed, trip *model.Trip) []string {
	stopTimes := f.StopTimesForTrip(trip.ID)
	stopIDs := make([]string, len(stopTimes))
	for i, st := range stopTimes {
		stopIDs[i] = f.NormalizeStopID(st.StopID)
	}
	return stopIDs
}

// Unique clusters trips by the stop sequence of their shape. Each
// shape is represented by its first trip in feed order. Shapes with
// identical sequences share a cluster, and a shape whose sequence is
// a sub-run of an already clustered one merges into it (and the other
// way around: a longer sequence absorbs an existing sub-run, taking
// over as representative). A shape merges into at most one cluster,
// the earliest placed one. Returns variants by descending trip count.
func Unique(f *feed.Feed, trips []*model.Trip, logger *slog.Logger) []Variant {
	counts := map[string]int{}
	firstTrip := map[string]*model.Trip{}
	order := []string{}
	for _, trip := range trips {
		if _, seen := counts[trip.ShapeID]; !seen {
			order = append(order, trip.ShapeID)
			firstTrip[trip.ShapeID] = trip
		}
		counts[trip.ShapeID]++
	}

	// Most traveled shapes first. Ties resolve by shape id so runs
	// are deterministic.
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})

	type cluster struct {
		key     string
		shapeID string
		count   int
		stopIDs []string
	}
	clusters := []*cluster{}

	for _, shapeID := range order {
		count := counts[shapeID]
		stopIDs := stopSequence(f, firstTrip[shapeID])
		key := canonicalKey(stopIDs)

		idx := -1
		for j, c := range clusters {
			if c.key == key {
				idx = j
				break
			}
		}

		if idx < 0 {
			for j, c := range clusters {
				if isSubsequence(stopIDs, c.stopIDs) {
					logger.Debug("shape contained in existing shape",
						"shape_id", shapeID,
						"existing_shape_id", c.shapeID)
					idx = j
					break
				}
				if isSubsequence(c.stopIDs, stopIDs) {
					logger.Debug("shape supersedes existing shape",
						"shape_id", shapeID,
						"existing_shape_id", c.shapeID)
					count += c.count
					clusters = append(clusters[:j], clusters[j+1:]...)
					break
				}
			}
		}

		if idx < 0 {
			clusters = append(clusters, &cluster{
				key:     key,
				shapeID: shapeID,
				stopIDs: stopIDs,
			})
			idx = len(clusters) - 1
		}
		clusters[idx].count += count
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].count > clusters[j].count
	})

	variants := make([]Variant, len(clusters))
	for i, c := range clusters {
		variants[i] = Variant{
			ShapeID: c.shapeID,
			Count:   c.count,
			StopIDs: c.stopIDs,
		}
	}
	return variants
}

// isSubsequence reports whether smaller appears in bigger as a single
// contiguous run anchored at the first occurrence of smaller's first
// element. A run starting at a later occurrence is not considered.
func isSubsequence(smaller, bigger []string) bool {
	smallerLen := len(smaller)
	biggerLen := len(bigger)
	if smallerLen > biggerLen {
		return false
	}
	if smallerLen == 0 {
		return true
	}

	start := -1
	for i, v := range bigger {
		if v == smaller[0] {
			start = i
			break
		}
	}
	if start < 0 {
		return false
	}

	if start+smallerLen > biggerLen {
		return false
	}

	for i := 1; i < smallerLen; i++ {
		if bigger[start+i] != smaller[i] {
			return false
		}
	}

	return true
}
