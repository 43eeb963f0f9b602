package domain

import "github.com/twpayne/go-geom/encoding/geojson"

// Layer is one complete annotated dataset pushed to a rendering surface in a
// single call. It replaces the previous layer wholesale.
type Layer struct {
	Occupation string                     `json:"occupation"`
	Salary     float64                    `json:"salary"`
	Hourly     float64                    `json:"hourly"`
	Sequence   uint64                     `json:"sequence"`
	Stats      CoverageStats              `json:"stats"`
	Features   *geojson.FeatureCollection `json:"features"`
}
