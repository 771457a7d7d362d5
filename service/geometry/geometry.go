// Package geometry wraps the GEOS operations used on the AOI features.
package geometry

import (
	"fmt"

	"github.com/paulsmith/gogeos/geos"
)

// TOLERANCE_GEOG is the simplification tolerance of geographic footprints (degrees)
var TOLERANCE_GEOG = 0.000001

func fromWKTs(wkts []string) ([]*geos.Geometry, error) {
	geoms := make([]*geos.Geometry, 0, len(wkts))
	for _, wkt := range wkts {
		g, err := geos.FromWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("FromWKT: %w", err)
		}
		geoms = append(geoms, g)
	}
	return geoms, nil
}

// WKTUnion merges the polygons into a single simplified footprint
func WKTUnion(wkts []string, tolerance float64) (string, error) {
	if len(wkts) == 0 {
		return "", fmt.Errorf("WKTUnion: no geometry")
	}
	geoms, err := fromWKTs(wkts)
	if err != nil {
		return "", fmt.Errorf("WKTUnion.%w", err)
	}
	footprint, err := Union(geoms, tolerance)
	if err != nil {
		return "", fmt.Errorf("WKTUnion.%w", err)
	}
	wkt, err := footprint.ToWKT()
	if err != nil {
		return "", fmt.Errorf("WKTUnion.ToWKT: %w", err)
	}
	return wkt, nil
}

// Union returns the simplified union of the polygons.
// If the unary union fails (invalid topology), the polygons are simplified and merged one by one.
func Union(geoms []*geos.Geometry, tolerance float64) (*geos.Geometry, error) {
	union, err := unaryUnion(geoms)
	if err == nil {
		if union, err = union.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		return union, nil
	}
	union = nil
	for _, g := range geoms {
		if g, err = g.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		if union == nil {
			union = g
			continue
		}
		if union, err = g.Union(union); err != nil {
			return nil, fmt.Errorf("Union: %w", err)
		}
	}
	return union, nil
}

func unaryUnion(geoms []*geos.Geometry) (*geos.Geometry, error) {
	collection, err := geos.NewCollection(geos.MULTIPOLYGON, geoms...)
	if err != nil {
		return nil, fmt.Errorf("unaryUnion.NewCollection: %w", err)
	}
	union, err := collection.UnaryUnion()
	if err != nil {
		return nil, fmt.Errorf("unaryUnion.UnaryUnion: %w", err)
	}
	return union, nil
}

// WKTIntersects returns whether the two geometries intersect
func WKTIntersects(wkt1, wkt2 string) (bool, error) {
	geoms, err := fromWKTs([]string{wkt1, wkt2})
	if err != nil {
		return false, fmt.Errorf("WKTIntersects.%w", err)
	}
	return geoms[0].Intersects(geoms[1])
}
