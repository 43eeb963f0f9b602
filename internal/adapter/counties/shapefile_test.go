package counties

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

func square(x, y float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}, {X: x + 1, Y: y}, {X: x, Y: y}}
}

func writeShapefile(t *testing.T, withName bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tl_2023_us_county.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	fields := []shp.Field{shp.StringField("STATEFP", 2), shp.StringField("GEOID", 5)}
	if withName {
		fields = append(fields, shp.StringField("NAME", 40))
	}
	require.NoError(t, w.SetFields(fields))

	rows := []struct {
		parts         [][]shp.Point
		fp, geoid, nm string
	}{
		{[][]shp.Point{square(-88, 41)}, "17", "17031", "Cook"},
		{[][]shp.Point{square(-72, 41), square(-70, 41)}, "25", "25019", "Nantucket"},
	}
	for _, r := range rows {
		poly := shp.Polygon(*shp.NewPolyLine(r.parts))
		n := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(n, 0, r.fp))
		require.NoError(t, w.WriteAttribute(n, 1, r.geoid))
		if withName {
			require.NoError(t, w.WriteAttribute(n, 2, r.nm))
		}
	}
	w.Close()
	return path
}

func TestLoad_Shapefile(t *testing.T) {
	c, err := Load(context.Background(), writeShapefile(t, true), time.Second, discardLogger())
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
	key, ok := c.Key(0)
	require.True(t, ok)
	assert.Equal(t, "IL|cook", key)

	i, ok := c.Find("25", "Nantucket County")
	require.True(t, ok)
	props := c.Properties(i)
	assert.Equal(t, "25019", props["GEOID"])

	a := domain.Annotate(c, domain.WageTable{
		"MA|nantucket": domain.Thresholds(map[domain.Level]float64{domain.Level1: 10}),
	}, 20)
	fc := a.FeatureCollection()
	mp, ok := fc.Features[i].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, domain.CoverageStats{Level1: 1, Total: 1}, a.Stats)
}

func TestLoad_ShapefileMissingName(t *testing.T) {
	_, err := Load(context.Background(), writeShapefile(t, false), time.Second, discardLogger())

	var dfe *domain.DataFetchError
	require.ErrorAs(t, err, &dfe)
	assert.Contains(t, err.Error(), "NAME")
}
