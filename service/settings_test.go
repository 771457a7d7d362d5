package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSettings = `[GENERAL]
DataDirectory = %DATA%
AOI = thuringia.geojson

[DOWNLOAD]
TimespanMin = 2021-01-01
TimespanMax = 2021-03-31
OpticalCloudCoverRangeMax = 30
SAROrbitDirection = DESC

[PROCESSING]
DEM = SRTM 1Sec HGT
NPROC = 8
Polarizations = VV, VH

[PREPARE]
MinFileSize = 1000
`

func writeSettings(t *testing.T, content string) (string, string) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	if err := SetupProject(dir); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "settings.prm")
	content = strings.ReplaceAll(content, "%DATA%", data)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestLoadSettings(t *testing.T) {
	path, data := writeSettings(t, testSettings)
	s, err := LoadSettings(NewViper(), path)
	if err != nil {
		t.Fatal(err)
	}
	if s.DataDirectory != data {
		t.Errorf("expected %s, got %s", data, s.DataDirectory)
	}
	if !s.Download.TimespanMin.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected TimespanMin: %v", s.Download.TimespanMin)
	}
	if s.Download.OrbitDirection != "desc" {
		t.Errorf("expected desc, got %s", s.Download.OrbitDirection)
	}
	if s.Download.CloudCoverMin != 0 || s.Download.CloudCoverMax != 30 {
		t.Errorf("unexpected cloud cover range: %f-%f", s.Download.CloudCoverMin, s.Download.CloudCoverMax)
	}
	if s.Processing.NProc != 8 || s.Processing.NThread != 2 {
		t.Errorf("unexpected NPROC/NTHREAD: %d/%d", s.Processing.NProc, s.Processing.NThread)
	}
	if len(s.Processing.Polarizations) != 2 || s.Processing.Polarizations[1] != "VH" {
		t.Errorf("unexpected polarizations: %v", s.Processing.Polarizations)
	}
	if s.Prepare.MinFileSize != 1000 {
		t.Errorf("expected 1000, got %d", s.Prepare.MinFileSize)
	}
	if _, isType, err := s.DEMPath(); err != nil || !isType {
		t.Errorf("expected a DEM type, got %v (%v)", isType, err)
	}
	if _, err := s.AOIPath(); !errors.Is(err, ErrMissingSetting) {
		t.Errorf("expected ErrMissingSetting, got %v", err)
	}
	aoi := filepath.Join(s.MiscDir("aoi"), "thuringia.geojson")
	if err := os.WriteFile(aoi, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if p, err := s.AOIPath(); err != nil || p != aoi {
		t.Errorf("expected %s, got %s (%v)", aoi, p, err)
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	path, _ := writeSettings(t, "[GENERAL]\nDataDirectory = %DATA%\n[DOWNLOAD]\nSAROrbitDirection = up\n")
	if _, err := LoadSettings(NewViper(), path); !errors.Is(err, ErrMissingSetting) || !Fatal(err) {
		t.Errorf("expected a fatal ErrMissingSetting, got %v", err)
	}

	path, _ = writeSettings(t, "[GENERAL]\nAOI = aoi.shp\n")
	if _, err := LoadSettings(NewViper(), path); !errors.Is(err, ErrMissingSetting) {
		t.Errorf("expected ErrMissingSetting, got %v", err)
	}
}
