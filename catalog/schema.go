package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"gopkg.in/yaml.v3"
)

// ProductSchema is the subset of a product definition used to describe its datasets
type ProductSchema struct {
	Name       string
	CRS        string
	Resolution float64
	Bands      []string // in the order of the measurements of the product
}

type productDefinition struct {
	Name    string `yaml:"name"`
	Storage struct {
		CRS        string `yaml:"crs"`
		Resolution struct {
			X float64 `yaml:"x"`
		} `yaml:"resolution"`
	} `yaml:"storage"`
	Measurements []struct {
		Name string `yaml:"name"`
	} `yaml:"measurements"`
}

// Schemas of a sensor, indexed by file name (e.g. sentinel2.yaml, sentinel1_asc.yaml)
type Schemas map[string]ProductSchema

// SchemaFile returns the file name of the product definition of the sensor for the orbit direction (SAR only)
func SchemaFile(sensor common.Sensor, orbit string) string {
	if sensor.Family() == common.SAR {
		return fmt.Sprintf("%s_%s.%s", sensor, orbit, service.ExtensionYAML)
	}
	return fmt.Sprintf("%s.%s", sensor, service.ExtensionYAML)
}

// LoadSchemas reads the product definitions of the sensor in dir.
// SAR sensors have one product per orbit direction.
// Raise service.ErrMissingSchema
func LoadSchemas(dir string, sensor common.Sensor) (Schemas, error) {
	files := []string{SchemaFile(sensor, "")}
	if sensor.Family() == common.SAR {
		files = []string{SchemaFile(sensor, common.OrbitAscending), SchemaFile(sensor, common.OrbitDescending)}
	}
	schemas := Schemas{}
	for _, file := range files {
		s, err := LoadSchema(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("LoadSchemas.%w", err)
		}
		schemas[file] = s
	}
	return schemas, nil
}

// LoadSchema reads a product definition
func LoadSchema(path string) (ProductSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProductSchema{}, service.ConfigError(service.ErrMissingSchema, path, err)
	}
	var def productDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ProductSchema{}, service.ConfigError(service.ErrMissingSchema, path, err)
	}
	if def.Name == "" || len(def.Measurements) == 0 {
		return ProductSchema{}, service.ConfigError(service.ErrMissingSchema, path, "name and measurements are required")
	}
	s := ProductSchema{
		Name:       def.Name,
		CRS:        def.Storage.CRS,
		Resolution: def.Storage.Resolution.X,
	}
	for _, m := range def.Measurements {
		s.Bands = append(s.Bands, m.Name)
	}
	return s, nil
}
