// Package aoi loads the area of interest and derives the clipping geometries of the rasters.
package aoi

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/geometry"
	"github.com/airbusgeo/godal"
)

const wgs84EPSG = 4326

// Driver returns the OGR driver of the vector file, given its extension
func Driver(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return "ESRI Shapefile", nil
	case ".gpkg":
		return "GPKG", nil
	case ".geojson", ".json":
		return "GeoJSON", nil
	}
	return "", service.ConfigError(service.ErrUnsupportedFormat, path)
}

// AOI is an immutable area of interest: the geometries of all the features of a vector file and their CRS
type AOI struct {
	path     string
	driver   string
	srsWKT   string
	features []string // WKT, in the native CRS
}

// Load reads all the features of the vector file.
// Raise service.ErrUnsupportedFormat or service.ErrInvalidGeometry
func Load(path string) (*AOI, error) {
	driver, err := Driver(path)
	if err != nil {
		return nil, fmt.Errorf("Load.%w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, service.ConfigError(service.ErrInvalidGeometry, path, err)
	}

	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, service.ConfigError(service.ErrInvalidGeometry, path, err)
	}
	defer ds.Close()

	a := AOI{path: path, driver: driver}
	for _, layer := range ds.Layers() {
		if a.srsWKT == "" {
			if sr := layer.SpatialRef(); sr != nil {
				if a.srsWKT, err = sr.WKT(); err != nil {
					return nil, fmt.Errorf("Load.WKT: %w", err)
				}
			}
		}
		for {
			feat := layer.NextFeature()
			if feat == nil {
				break
			}
			g := feat.Geometry()
			if g != nil && !g.Empty() {
				wkt, err := g.WKT()
				if err == nil {
					a.features = append(a.features, wkt)
				}
			}
			if g != nil {
				g.Close()
			}
			feat.Close()
		}
	}

	if len(a.features) == 0 {
		return nil, service.ConfigError(service.ErrInvalidGeometry, path, "no valid feature")
	}
	if a.srsWKT == "" {
		// GeoJSON without crs member is WGS84
		sr, err := godal.NewSpatialRefFromEPSG(wgs84EPSG)
		if err != nil {
			return nil, fmt.Errorf("Load.NewSpatialRef: %w", err)
		}
		defer sr.Close()
		if a.srsWKT, err = sr.WKT(); err != nil {
			return nil, fmt.Errorf("Load.WKT: %w", err)
		}
	}
	return &a, nil
}

// Path of the vector file
func (a *AOI) Path() string { return a.path }

// SpatialRefWKT returns the native CRS of the AOI
func (a *AOI) SpatialRefWKT() string { return a.srsWKT }

// Features returns a copy of the WKT of the features, in the native CRS
func (a *AOI) Features() []string {
	return append([]string(nil), a.features...)
}

// ClipFeatures returns the features reprojected into the target CRS (in memory)
func (a *AOI) ClipFeatures(targetSRSWKT string) (*ClipFeatures, error) {
	wkts, err := a.reproject(targetSRSWKT)
	if err != nil {
		return nil, fmt.Errorf("ClipFeatures.%w", err)
	}
	return newClipFeatures(targetSRSWKT, wkts)
}

// Footprint returns the union of the features in WGS84, as WKT
func (a *AOI) Footprint() (string, error) {
	sr, err := godal.NewSpatialRefFromEPSG(wgs84EPSG)
	if err != nil {
		return "", fmt.Errorf("Footprint.NewSpatialRef: %w", err)
	}
	defer sr.Close()
	srWKT, err := sr.WKT()
	if err != nil {
		return "", fmt.Errorf("Footprint.WKT: %w", err)
	}
	wkts, err := a.reproject(srWKT)
	if err != nil {
		return "", fmt.Errorf("Footprint.%w", err)
	}
	footprint, err := geometry.WKTUnion(wkts, geometry.TOLERANCE_GEOG)
	if err != nil {
		return "", fmt.Errorf("Footprint.%w", err)
	}
	return footprint, nil
}

// WGS84Bounds returns the bounds (minx, miny, maxx, maxy) of the AOI in WGS84
func (a *AOI) WGS84Bounds() ([4]float64, error) {
	footprint, err := a.Footprint()
	if err != nil {
		return [4]float64{}, fmt.Errorf("WGS84Bounds.%w", err)
	}
	g, err := godal.NewGeometryFromWKT(footprint, nil)
	if err != nil {
		return [4]float64{}, fmt.Errorf("WGS84Bounds.NewGeometry: %w", err)
	}
	defer g.Close()
	return g.Bounds()
}

// Bounds returns the bounds (minx, miny, maxx, maxy) of all the features in the native CRS
func (a *AOI) Bounds() ([4]float64, error) {
	return wktBounds(a.features)
}

func wktBounds(wkts []string) ([4]float64, error) {
	var bounds [4]float64
	for i, wkt := range wkts {
		g, err := godal.NewGeometryFromWKT(wkt, nil)
		if err != nil {
			return bounds, fmt.Errorf("Bounds.NewGeometry: %w", err)
		}
		b, err := g.Bounds()
		g.Close()
		if err != nil {
			return bounds, fmt.Errorf("Bounds: %w", err)
		}
		if i == 0 {
			bounds = b
			continue
		}
		bounds[0], bounds[1] = math.Min(bounds[0], b[0]), math.Min(bounds[1], b[1])
		bounds[2], bounds[3] = math.Max(bounds[2], b[2]), math.Max(bounds[3], b[3])
	}
	return bounds, nil
}

// WGS84Copy returns the path of a WGS84 copy of the AOI file, written next to it if it does not exist yet
// (<base>_4326<ext>). If the AOI is already in WGS84, the original path is returned.
func (a *AOI) WGS84Copy() (string, error) {
	sr, err := godal.NewSpatialRefFromWKT(a.srsWKT)
	if err != nil {
		return "", fmt.Errorf("WGS84Copy.NewSpatialRef: %w", err)
	}
	defer sr.Close()
	if sr.AuthorityCode("") == fmt.Sprint(wgs84EPSG) {
		return a.path, nil
	}

	ext := filepath.Ext(a.path)
	out := strings.TrimSuffix(a.path, ext) + fmt.Sprintf("_%d", wgs84EPSG) + ext
	if _, err := os.Stat(out); err == nil {
		return out, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("WGS84Copy.Stat: %w", err)
	}

	ds, err := godal.Open(a.path, godal.VectorOnly())
	if err != nil {
		return "", fmt.Errorf("WGS84Copy.Open: %w", err)
	}
	defer ds.Close()
	dst, err := ds.VectorTranslate(out, []string{"-f", a.driver, "-t_srs", fmt.Sprintf("EPSG:%d", wgs84EPSG)})
	if err != nil {
		return "", fmt.Errorf("WGS84Copy.VectorTranslate: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("WGS84Copy.Close: %w", err)
	}
	return out, nil
}

// reproject returns the features in the target CRS
func (a *AOI) reproject(targetSRSWKT string) ([]string, error) {
	src, err := godal.NewSpatialRefFromWKT(a.srsWKT)
	if err != nil {
		return nil, fmt.Errorf("reproject.NewSpatialRef: %w", err)
	}
	defer src.Close()
	dst, err := godal.NewSpatialRefFromWKT(targetSRSWKT)
	if err != nil {
		return nil, fmt.Errorf("reproject.NewSpatialRef[target]: %w", err)
	}
	defer dst.Close()

	if src.IsSame(dst) {
		return a.Features(), nil
	}

	wkts := make([]string, 0, len(a.features))
	for _, wkt := range a.features {
		g, err := godal.NewGeometryFromWKT(wkt, src)
		if err != nil {
			return nil, fmt.Errorf("reproject.NewGeometry: %w", err)
		}
		err = g.Reproject(dst)
		if err == nil {
			wkt, err = g.WKT()
		}
		g.Close()
		if err != nil {
			return nil, fmt.Errorf("reproject: %w", err)
		}
		wkts = append(wkts, wkt)
	}
	return wkts, nil
}
