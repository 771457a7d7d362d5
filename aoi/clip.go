package aoi

import (
	"fmt"

	"github.com/airbusgeo/ardcube/service/geometry"
	"github.com/airbusgeo/godal"
)

// ClipFeatures are the AOI geometries in the CRS of a raster.
// They are read-only and can be shared between goroutines: GDAL handles are created by each caller.
type ClipFeatures struct {
	srsWKT string
	wkts   []string
}

func newClipFeatures(srsWKT string, wkts []string) (*ClipFeatures, error) {
	if len(wkts) == 0 {
		return nil, fmt.Errorf("newClipFeatures: no geometry")
	}
	return &ClipFeatures{srsWKT: srsWKT, wkts: wkts}, nil
}

// NewClipFeatures creates clip features from WKT geometries already expressed in the CRS srsWKT
func NewClipFeatures(srsWKT string, wkts ...string) (*ClipFeatures, error) {
	return newClipFeatures(srsWKT, append([]string(nil), wkts...))
}

// SpatialRefWKT returns the CRS of the features
func (c *ClipFeatures) SpatialRefWKT() string { return c.srsWKT }

// WKTs returns a copy of the geometries
func (c *ClipFeatures) WKTs() []string { return append([]string(nil), c.wkts...) }

// Intersects returns true if at least one feature intersects the bounds (minx, miny, maxx, maxy)
func (c *ClipFeatures) Intersects(bounds [4]float64) (bool, error) {
	box := BoundsWKT(bounds)
	for _, wkt := range c.wkts {
		ok, err := geometry.WKTIntersects(wkt, box)
		if err != nil {
			return false, fmt.Errorf("Intersects.%w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Bounds returns the bounds (minx, miny, maxx, maxy) of all the features
func (c *ClipFeatures) Bounds() ([4]float64, error) {
	return wktBounds(c.wkts)
}

// Geometries returns new GDAL geometries of the features. They must be closed by the caller, as well as the SpatialRef.
func (c *ClipFeatures) Geometries() ([]*godal.Geometry, *godal.SpatialRef, error) {
	sr, err := godal.NewSpatialRefFromWKT(c.srsWKT)
	if err != nil {
		return nil, nil, fmt.Errorf("Geometries.NewSpatialRef: %w", err)
	}
	geoms := make([]*godal.Geometry, 0, len(c.wkts))
	for _, wkt := range c.wkts {
		g, err := godal.NewGeometryFromWKT(wkt, sr)
		if err != nil {
			for _, g := range geoms {
				g.Close()
			}
			sr.Close()
			return nil, nil, fmt.Errorf("Geometries.NewGeometry: %w", err)
		}
		geoms = append(geoms, g)
	}
	return geoms, sr, nil
}

// BoundsWKT returns the polygon of the bounds (minx, miny, maxx, maxy)
func BoundsWKT(b [4]float64) string {
	return fmt.Sprintf("POLYGON ((%[1]f %[2]f, %[3]f %[2]f, %[3]f %[4]f, %[1]f %[4]f, %[1]f %[2]f))", b[0], b[1], b[2], b[3])
}
