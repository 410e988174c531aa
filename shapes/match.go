package shapes

import (
	"fmt"
	"strings"
)

// MatchCustom narrows variants down to the single one satisfying a
// custom direction's stop constraints. All included stops must appear
// in order, each found at or after the position following the previous
// match; any excluded stop disqualifies a variant. Anything other than
// exactly one survivor is an error.
func MatchCustom(routeID, gtfsDirectionID string, variants []Variant, includedStopIDs, excludedStopIDs []string) (Variant, error) {
	matches := []Variant{}
	for _, v := range variants {
		if !containsInOrder(v.StopIDs, includedStopIDs) {
			continue
		}
		if containsAny(v.StopIDs, excludedStopIDs) {
			continue
		}
		matches = append(matches, v)
	}

	if len(matches) != 1 {
		msg := fmt.Sprintf("%d shapes found for route '%s' with GTFS direction ID %s",
			len(matches), routeID, gtfsDirectionID)
		if len(includedStopIDs) > 0 {
			msg += fmt.Sprintf(" including %s", strings.Join(includedStopIDs, ","))
		}
		if len(excludedStopIDs) > 0 {
			msg += fmt.Sprintf(" excluding %s", strings.Join(excludedStopIDs, ","))
		}
		if len(matches) > 0 {
			shapeIDs := make([]string, len(matches))
			for i, v := range matches {
				shapeIDs[i] = v.ShapeID
			}
			msg += fmt.Sprintf(": %s", strings.Join(shapeIDs, ","))
		}
		return Variant{}, fmt.Errorf("%s", msg)
	}

	return matches[0], nil
}

func containsInOrder(stopIDs, wanted []string) bool {
	minIndex := 0
	for _, id := range wanted {
		found := false
		for i := minIndex; i < len(stopIDs); i++ {
			if stopIDs[i] == id {
				// stops must appear in the same order as in wanted
				minIndex = i + 1
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsAny(stopIDs, ids []string) bool {
	for _, id := range ids {
		for _, v := range stopIDs {
			if v == id {
				return true
			}
		}
	}
	return false
}
