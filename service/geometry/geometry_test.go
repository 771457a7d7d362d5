package geometry

import (
	"fmt"
	"testing"

	"github.com/paulsmith/gogeos/geos"
)

func checkGeomEquality(wkt1, wkt2 string) error {
	geom1, err := geos.FromWKT(wkt1)
	if err != nil {
		return err
	}
	geom2, err := geos.FromWKT(wkt2)
	if err != nil {
		return err
	}
	if equal, err := geom1.Equals(geom2); err != nil {
		return err
	} else if !equal {
		return fmt.Errorf("Not equal")
	}
	return nil
}

func TestUnion(t *testing.T) {
	west := "POLYGON ((10 50, 11 50, 11 51, 10 51, 10 50))"
	east := "POLYGON ((11 50, 12 50, 12 51, 11 51, 11 50))"
	both := "POLYGON ((10 50, 12 50, 12 51, 10 51, 10 50))"

	if wkt, err := WKTUnion([]string{west, west}, TOLERANCE_GEOG); err != nil {
		t.Error(err)
	} else if err := checkGeomEquality(wkt, west); err != nil {
		t.Errorf("expect %s found %s (%v)", west, wkt, err)
	}

	if wkt, err := WKTUnion([]string{west, east}, TOLERANCE_GEOG); err != nil {
		t.Error(err)
	} else if err := checkGeomEquality(wkt, both); err != nil {
		t.Errorf("expect %s found %s (%v)", both, wkt, err)
	}

	if _, err := WKTUnion(nil, TOLERANCE_GEOG); err == nil {
		t.Errorf("expected an error")
	}
	if _, err := WKTUnion([]string{"POLYGON ((10 50"}, TOLERANCE_GEOG); err == nil {
		t.Errorf("expected an error")
	}
}

func TestIntersects(t *testing.T) {
	aoi := "POLYGON ((10 50, 11 50, 11 51, 10 51, 10 50))"
	if ok, err := WKTIntersects(aoi, "POLYGON ((10.5 50.5, 12 50.5, 12 52, 10.5 52, 10.5 50.5))"); err != nil || !ok {
		t.Errorf("expected intersection (%v)", err)
	}
	if ok, err := WKTIntersects(aoi, "POLYGON ((20 50, 21 50, 21 51, 20 51, 20 50))"); err != nil || ok {
		t.Errorf("expected no intersection (%v)", err)
	}
}
