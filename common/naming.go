package common

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Sensor is a supported dataset
type Sensor string

const (
	Sentinel1 Sensor = "sentinel1" // S1A__IW___A_20210101T053000_VV_gamma0-rtc_db.tif (terrain-correction output)
	Sentinel2 Sensor = "sentinel2" // 20210101_LEVEL2_SEN2A_BOA.tif (atmospheric-correction output)
	Landsat4  Sensor = "landsat4"
	Landsat5  Sensor = "landsat5"
	Landsat7  Sensor = "landsat7"
	Landsat8  Sensor = "landsat8"
)

// Sensors lists all the supported sensors
var Sensors = []Sensor{Sentinel1, Sentinel2, Landsat4, Landsat5, Landsat7, Landsat8}

// Family of sensors
type Family int

const (
	SAR Family = iota
	Optical
)

func (f Family) String() string {
	if f == SAR {
		return "SAR"
	}
	return "Optical"
}

// ParseSensor returns the sensor from the user input (e.g. Sentinel1, sentinel-1)
func ParseSensor(input string) (Sensor, error) {
	s := Sensor(strings.ReplaceAll(strings.ToLower(input), "-", ""))
	for _, sensor := range Sensors {
		if s == sensor {
			return s, nil
		}
	}
	return "", fmt.Errorf("ParseSensor: %s is not supported", input)
}

// Family returns SAR or Optical
func (s Sensor) Family() Family {
	if s == Sentinel1 {
		return SAR
	}
	return Optical
}

// ForceAbbreviation returns the sensor list of the level-1 download tool (empty for SAR)
func (s Sensor) ForceAbbreviation() string {
	switch s {
	case Sentinel2:
		return "S2A,S2B"
	case Landsat4:
		return "LT04"
	case Landsat5:
		return "LT05"
	case Landsat7:
		return "LE07"
	case Landsat8:
		return "LC08"
	}
	return ""
}

// RasterPattern returns the glob of the processed rasters.
// Optical quality masks are not matched: they are derived from the BOA name.
func (s Sensor) RasterPattern() string {
	if s.Family() == SAR {
		return "*.tif"
	}
	return "*BOA.tif"
}

const (
	suffixBOA = "BOA"
	suffixQAI = "QAI"

	// OrbitCodeOffset is the position of the orbit direction (A or D) in the name of a terrain-corrected file
	// MMM__MM___O_YYYYMMDDTHHMMSS_PP_...
	OrbitCodeOffset = 10
)

// dateToken matches YYYYMMDD (atmospheric-correction naming) or _YYYYMMDDTHHMMSS (terrain-correction naming).
// The alternatives are tried from left to right at each position, so an underscore-prefixed date-time wins
// over the date it contains.
var dateToken = regexp.MustCompile(`\d{8}|_\d{8}T\d{6}`)

// DateToken returns the acquisition date token of the file name (YYYYMMDD or YYYYMMDDTHHMMSS)
func DateToken(fileName string) (string, bool) {
	tok := dateToken.FindString(filepath.Base(fileName))
	if tok == "" {
		return "", false
	}
	return strings.TrimPrefix(tok, "_"), true
}

// OrbitCode returns the orbit direction code of a terrain-corrected file name
func OrbitCode(fileName string) (byte, bool) {
	name := filepath.Base(fileName)
	if len(name) <= OrbitCodeOffset {
		return 0, false
	}
	return name[OrbitCodeOffset], true
}

// QualityMaskPath returns the path of the quality mask of a BOA raster
func QualityMaskPath(boaPath string) string {
	dir, name := filepath.Split(boaPath)
	return dir + strings.Replace(name, suffixBOA, suffixQAI, 1)
}

// DocumentPath returns the path of the catalog document describing the raster
// SAR: the raster name without extension, Optical: the raster name without "_BOA.tif"
func DocumentPath(sensor Sensor, rasterPath string) string {
	if sensor.Family() == SAR {
		return strings.TrimSuffix(rasterPath, filepath.Ext(rasterPath)) + ".yaml"
	}
	dir, name := filepath.Split(rasterPath)
	return dir + strings.Replace(name, "_"+suffixBOA+".tif", ".yaml", 1)
}

var landsatProductID = regexp.MustCompile("^L[CETO]0[4-9]_")

// SceneInfo returns the fields of a level-1 scene name (Sentinel-1 or Landsat collection 2)
func SceneInfo(sceneName string) (map[string]string, error) {
	switch {
	case strings.HasPrefix(sceneName, "S1"):
		if len(sceneName) < len("MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC") {
			return nil, fmt.Errorf("invalid Sentinel1 file name: %s", sceneName)
		}
		return map[string]string{
			"SCENE":           sceneName,
			"MISSION_ID":      sceneName[0:3],
			"MISSION_VERSION": sceneName[2:3],
			"MODE":            sceneName[4:6],
			"PRODUCT_TYPE":    sceneName[7:10],
			"POLARISATION":    sceneName[14:16],
			"DATE":            sceneName[17:25],
			"YEAR":            sceneName[17:21],
			"MONTH":           sceneName[21:23],
			"DAY":             sceneName[23:25],
			"TIME":            sceneName[26:32],
			"ORBIT":           sceneName[49:55],
		}, nil
	case landsatProductID.MatchString(sceneName):
		// LC08_L1TP_194025_20210315_20210328_02_T1
		if len(sceneName) < len("LXSS_LLLL_PPPRRR_YYYYMMDD_yyyymmdd_CX_TX") {
			return nil, fmt.Errorf("invalid Landsat file name: %s", sceneName)
		}
		return map[string]string{
			"SCENE":      sceneName,
			"MISSION_ID": sceneName[0:4],
			"LEVEL":      sceneName[5:9],
			"PATH":       sceneName[10:13],
			"ROW":        sceneName[13:16],
			"DATE":       sceneName[17:25],
			"YEAR":       sceneName[17:21],
			"MONTH":      sceneName[21:23],
			"DAY":        sceneName[23:25],
		}, nil
	}
	return nil, fmt.Errorf("SceneInfo: %s not supported", sceneName)
}

// FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
