package geometry

// Offsets control how stops snap to paths, in meters.
type Offsets struct {
	// Stop scanning segments once a match closer than this is in
	// hand and offsets start growing again.
	EarlyExitMeters float64
	// Stops farther than this from the path are worth a log line.
	WarnMeters float64
	// Stops farther than this get no geometry at all.
	DiscardMeters float64
}

func DefaultOffsets() Offsets {
	return Offsets{
		EarlyExitMeters: 50,
		WarnMeters:      30,
		DiscardMeters:   100,
	}
}

// Offset reported when a stop can't be matched to any segment.
const UnreachableOffset = 99999999

// Path is a polyline in a local XY frame, with the cumulative distance
// from the start at every vertex. Cumulative distances are measured
// with Haversine over the original coordinates rather than in the
// projected frame.
type Path struct {
	Projection Projection
	Points     []Point
	Cumulative []float64
}

func NewPath(coords []LatLon) *Path {
	if len(coords) == 0 {
		return &Path{}
	}

	proj := NewProjection(coords[0].Lat, coords[0].Lon)

	points := make([]Point, len(coords))
	cumulative := make([]float64, len(coords))
	total := 0.0
	for i, c := range coords {
		points[i] = proj.Project(c.Lat, c.Lon)
		if i > 0 {
			total += Haversine(coords[i-1].Lat, coords[i-1].Lon, c.Lat, c.Lon)
		}
		cumulative[i] = total
	}

	return &Path{
		Projection: proj,
		Points:     points,
		Cumulative: cumulative,
	}
}

// Distance returns the path's total length in whole meters.
func (p *Path) Distance() int {
	if len(p.Cumulative) == 0 {
		return 0
	}
	return int(p.Cumulative[len(p.Cumulative)-1])
}

// StopProjection places a stop along a path. Distance is meters from
// the path's start to where the stop attaches, AfterIndex is the path
// vertex whose segment it attaches to, Offset is how far the stop sits
// from the path itself.
type StopProjection struct {
	Distance   int
	AfterIndex int
	Offset     int
}

// ProjectStop scans segments forward from startIndex looking for the
// one closest to xy. Once a segment within earlyExitMeters has been
// seen, the scan ends at the first segment whose offset is worse than
// the best so far; route paths double back on themselves, and without
// the early exit a stop near such a fold could attach to the wrong
// pass.
func (p *Path) ProjectStop(xy Point, startIndex int, earlyExitMeters float64) StopProjection {
	if len(p.Points) < 2 {
		return StopProjection{Offset: UnreachableOffset}
	}

	bestOffset := float64(UnreachableOffset)
	bestIndex := 0

	for i := startIndex; i < len(p.Points)-1; i++ {
		offset := distanceToSegment(xy, p.Points[i], p.Points[i+1])
		if offset < bestOffset {
			bestOffset = offset
			bestIndex = i
		}
		if bestOffset < earlyExitMeters && offset > bestOffset {
			break
		}
	}

	// Distance along the path: cumulative distance to the chosen
	// segment's start, plus the stop's distance from that vertex.
	dist := p.Cumulative[bestIndex] + distance(xy, p.Points[bestIndex])

	return StopProjection{
		Distance:   int(dist),
		AfterIndex: bestIndex,
		Offset:     int(bestOffset),
	}
}
