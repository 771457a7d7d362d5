package aoi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/godal"
)

const testGeoJSON = `{
"type": "FeatureCollection",
"features": [
{"type": "Feature", "properties": {"id": 1}, "geometry": {"type": "Polygon", "coordinates": [[[8.99, 41.49], [9.0, 41.49], [9.0, 41.51], [8.99, 41.51], [8.99, 41.49]]]}},
{"type": "Feature", "properties": {"id": 2}, "geometry": {"type": "Polygon", "coordinates": [[[9.0, 41.49], [9.01, 41.49], [9.01, 41.51], [9.0, 41.51], [9.0, 41.49]]]}}
]
}`

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

func writeAOI(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func epsgWKT(t *testing.T, code int) string {
	sr, err := godal.NewSpatialRefFromEPSG(code)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		t.Fatal(err)
	}
	return wkt
}

func TestDriver(t *testing.T) {
	for path, expected := range map[string]string{"a.shp": "ESRI Shapefile", "b.GPKG": "GPKG", "c.geojson": "GeoJSON", "d.json": "GeoJSON"} {
		if d, err := Driver(path); err != nil || d != expected {
			t.Errorf("%s: expected %s, got %s (%v)", path, expected, d, err)
		}
	}
	if _, err := Load("aoi.kml"); !errors.Is(err, service.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	a, err := Load(writeAOI(t, "aoi.geojson", testGeoJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Features()) != 2 {
		t.Fatalf("expected 2 features, got %d", len(a.Features()))
	}
	if a.SpatialRefWKT() == "" {
		t.Error("expected a CRS")
	}

	b, err := a.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if b != [4]float64{8.99, 41.49, 9.01, 41.51} {
		t.Errorf("unexpected bounds %v", b)
	}

	footprint, err := a.Footprint()
	if err != nil {
		t.Fatal(err)
	}
	if footprint == "" {
		t.Error("expected a footprint")
	}

	_, err = Load(writeAOI(t, "empty.geojson", `{"type": "FeatureCollection", "features": []}`))
	if !errors.Is(err, service.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
	if _, err = Load(filepath.Join(t.TempDir(), "missing.gpkg")); !errors.Is(err, service.ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestClipFeatures(t *testing.T) {
	a, err := Load(writeAOI(t, "aoi.geojson", testGeoJSON))
	if err != nil {
		t.Fatal(err)
	}

	// UTM 32N: the AOI is around (500000, 4593000)
	clip, err := a.ClipFeatures(epsgWKT(t, 32632))
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.WKTs()) != 2 {
		t.Fatalf("expected 2 features, got %d", len(clip.WKTs()))
	}
	if ok, err := clip.Intersects([4]float64{490000, 4583000, 510000, 4603000}); err != nil || !ok {
		t.Errorf("expected an intersection (%v)", err)
	}
	if ok, err := clip.Intersects([4]float64{600000, 4583000, 610000, 4603000}); err != nil || ok {
		t.Errorf("expected no intersection (%v)", err)
	}

	geoms, sr, err := clip.Geometries()
	if err != nil {
		t.Fatal(err)
	}
	if len(geoms) != 2 {
		t.Errorf("expected 2 geometries, got %d", len(geoms))
	}
	for _, g := range geoms {
		g.Close()
	}
	sr.Close()

	if _, err := NewClipFeatures(epsgWKT(t, 32632)); err == nil {
		t.Error("expected an error")
	}

	two, err := NewClipFeatures(epsgWKT(t, 32632), "POLYGON ((0 0, 2 0, 2 1, 0 1, 0 0))", "POINT (5 -3)")
	if err != nil {
		t.Fatal(err)
	}
	if b, err := two.Bounds(); err != nil || b != [4]float64{0, -3, 5, 1} {
		t.Errorf("unexpected bounds %v (%v)", b, err)
	}
}

func TestBoundsWKT(t *testing.T) {
	if s := BoundsWKT([4]float64{0, 1, 2, 3}); s != "POLYGON ((0.000000 1.000000, 2.000000 1.000000, 2.000000 3.000000, 0.000000 3.000000, 0.000000 1.000000))" {
		t.Errorf("unexpected %s", s)
	}
}
