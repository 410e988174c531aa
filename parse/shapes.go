package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type shapePointRow struct {
	ShapeID  string  `csv:"shape_id"`
	Lat      float64 `csv:"shape_pt_lat"`
	Lon      float64 `csv:"shape_pt_lon"`
	Sequence uint32  `csv:"shape_pt_sequence"`
}

// parseShapes reads shapes.txt. Together with stop_times.txt it makes
// up the bulk of a feed, so rows stream through a callback.
func parseShapes(writer *feed.Feed, data io.Reader) error {
	type shapePos struct {
		shape    string
		sequence uint32
	}
	seen := map[shapePos]bool{}

	row := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(p *shapePointRow) error {
		row++

		if p.ShapeID == "" {
			return fmt.Errorf("missing shape_id (row %d)", row)
		}
		if p.Lat == 0 || p.Lon == 0 {
			return fmt.Errorf("empty shape_pt_lat or shape_pt_lon for shape_id '%s' (row %d)", p.ShapeID, row)
		}

		pos := shapePos{p.ShapeID, p.Sequence}
		if seen[pos] {
			return fmt.Errorf("duplicate shape_pt_sequence %d for shape_id '%s'", p.Sequence, p.ShapeID)
		}
		seen[pos] = true

		writer.AddShapePoint(&model.ShapePoint{
			ShapeID:  p.ShapeID,
			Lat:      p.Lat,
			Lon:      p.Lon,
			Sequence: p.Sequence,
		})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "reading csv")
	}

	return nil
}
