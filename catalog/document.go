package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DatasetSchemaURL is the schema of the dataset documents
const DatasetSchemaURL = "https://schemas.opendatacube.org/dataset"

// QualityBand is the measurement of the quality mask of optical datasets
const QualityBand = "pixel_qa"

// Document describes a dataset (EO3 format)
type Document struct {
	ID           string          `yaml:"id"`
	Schema       string          `yaml:"$schema"`
	Product      Product         `yaml:"product"`
	CRS          string          `yaml:"crs"`
	Grids        map[string]Grid `yaml:"grids"`
	Measurements Measurements    `yaml:"measurements"`
	Properties   Properties      `yaml:"properties"`
}

type Product struct {
	Name string `yaml:"name"`
}

// Grid of the rasters: shape is [rows, cols], transform is the row-major affine matrix
type Grid struct {
	Shape     [2]int     `yaml:"shape,flow"`
	Transform [9]float64 `yaml:"transform,flow"`
}

type Properties struct {
	Datetime   string `yaml:"datetime"`
	OrbitState string `yaml:"sat:orbit_state,omitempty"`
}

// Measurement is a band of a dataset. Path is relative to the document.
type Measurement struct {
	Name string `yaml:"-"`
	Path string `yaml:"path"`
	Band int    `yaml:"band,omitempty"`
}

// Measurements keep the order of the bands of the product
type Measurements []Measurement

// Set replaces the measurement with the same name or appends it
func (ms *Measurements) Set(m Measurement) {
	for i := range *ms {
		if (*ms)[i].Name == m.Name {
			(*ms)[i] = m
			return
		}
	}
	*ms = append(*ms, m)
}

// MarshalYAML implements yaml.Marshaler
func (ms Measurements) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, m := range ms {
		var value yaml.Node
		if err := value.Encode(m); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: m.Name}, &value)
	}
	return node, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (ms *Measurements) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("measurements: mapping expected")
	}
	*ms = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		var m Measurement
		if err := node.Content[i+1].Decode(&m); err != nil {
			return err
		}
		m.Name = node.Content[i].Value
		*ms = append(*ms, m)
	}
	return nil
}

// Generator writes a document for each entry of a FileSet
type Generator struct {
	Sensor  common.Sensor
	Schemas Schemas
	// NormalizeCRS compares the CRS of the rasters and of the product semantically instead of verbatim
	NormalizeCRS bool
	NewID        func() string
}

// NewGenerator creates a generator of documents with random ids
func NewGenerator(sensor common.Sensor, schemas Schemas) *Generator {
	return &Generator{Sensor: sensor, Schemas: schemas, NewID: uuid.NewString}
}

// Generate writes the documents of all the entries, next to their first raster, and returns their paths.
// The first error stops the run (the documents already written are returned).
func (g *Generator) Generate(ctx context.Context, fileSet *FileSet) ([]string, error) {
	var paths []string
	for _, entry := range fileSet.Entries() {
		doc, err := g.Document(entry)
		if err != nil {
			return paths, fmt.Errorf("Generate[%s].%w", entry.Identity, err)
		}
		path := common.DocumentPath(g.Sensor, entry.Files[0])
		if err := WriteDocument(path, doc); err != nil {
			return paths, fmt.Errorf("Generate[%s].%w", entry.Identity, err)
		}
		log.Logger(ctx).Sugar().Debugf("document %s written", path)
		paths = append(paths, path)
	}
	log.Logger(ctx).Sugar().Infof("%d documents written for %s", len(paths), g.Sensor)
	return paths, nil
}

// Document returns the document of the entry
// Raise service.ErrSchemaMismatch, service.ErrBandCountMismatch, service.ErrUnrecognizedOrbitCode
func (g *Generator) Document(entry Entry) (*Document, error) {
	if len(entry.Files) == 0 {
		return nil, fmt.Errorf("Document: empty entry")
	}
	first := entry.Files[0]

	var orbit string
	if g.Sensor.Family() == common.SAR {
		var err error
		if orbit, err = OrbitState(first); err != nil {
			return nil, fmt.Errorf("Document.%w", err)
		}
	}
	schemaFile := SchemaFile(g.Sensor, orbit)
	schema, ok := g.Schemas[schemaFile]
	if !ok {
		return nil, service.ConfigError(service.ErrMissingSchema, schemaFile)
	}

	grid, crs, err := ReadGrid(first)
	if err != nil {
		return nil, fmt.Errorf("Document.%w", err)
	}
	same, err := g.sameCRS(schema.CRS, crs)
	if err != nil {
		return nil, fmt.Errorf("Document.%w", err)
	}
	if !same {
		return nil, service.ConfigError(service.ErrSchemaMismatch, first, "CRS differs from product "+schema.Name)
	}

	var measurements Measurements
	if g.Sensor.Family() == common.SAR {
		measurements, err = sarMeasurements(entry.Files, schema.Bands)
	} else {
		measurements = opticalMeasurements(first, schema.Bands)
	}
	if err != nil {
		return nil, fmt.Errorf("Document.%w", err)
	}

	datetime, err := entry.Identity.AcquisitionTime()
	if err != nil {
		return nil, fmt.Errorf("Document.%w", err)
	}

	newID := g.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Document{
		ID:           newID(),
		Schema:       DatasetSchemaURL,
		Product:      Product{Name: schema.Name},
		CRS:          crs,
		Grids:        map[string]Grid{"default": grid},
		Measurements: measurements,
		Properties:   Properties{Datetime: common.FormatDatetime(datetime), OrbitState: orbit},
	}, nil
}

func (g *Generator) sameCRS(schemaCRS, rasterCRS string) (bool, error) {
	if schemaCRS == rasterCRS {
		return true, nil
	}
	if !g.NormalizeCRS {
		return false, nil
	}
	sr1, err := godal.NewSpatialRef(schemaCRS)
	if err != nil {
		return false, service.ConfigError(service.ErrSchemaMismatch, schemaCRS, err)
	}
	defer sr1.Close()
	sr2, err := godal.NewSpatialRefFromWKT(rasterCRS)
	if err != nil {
		return false, fmt.Errorf("sameCRS: %w", err)
	}
	defer sr2.Close()
	return sr1.IsSame(sr2), nil
}

// OrbitState returns the orbit direction of a terrain-corrected file (asc or desc)
// Raise service.ErrUnrecognizedOrbitCode
func OrbitState(file string) (string, error) {
	code, _ := common.OrbitCode(file)
	switch code {
	case 'A':
		return common.OrbitAscending, nil
	case 'D':
		return common.OrbitDescending, nil
	}
	return "", service.ConfigError(service.ErrUnrecognizedOrbitCode, file)
}

// ReadGrid returns the grid and the CRS (WKT) of the raster
func ReadGrid(path string) (Grid, string, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return Grid{}, "", fmt.Errorf("ReadGrid.Open: %w", err)
	}
	defer ds.Close()
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return Grid{}, "", fmt.Errorf("ReadGrid.GeoTransform: %w", err)
	}
	var crs string
	if sr := ds.SpatialRef(); sr != nil {
		crs, err = sr.WKT()
		sr.Close()
		if err != nil {
			return Grid{}, "", fmt.Errorf("ReadGrid.WKT: %w", err)
		}
	}
	return Grid{
		Shape:     [2]int{st.SizeY, st.SizeX},
		Transform: AffineTransform(gt),
	}, crs, nil
}

// AffineTransform converts a GDAL geotransform (c, a, b, f, d, e) to the affine matrix [a, b, c, d, e, f, 0, 0, 1]
func AffineTransform(gt [6]float64) [9]float64 {
	return [9]float64{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3], 0, 0, 1}
}

// sarMeasurements returns one measurement per band, each band being stored in the file whose name contains it
func sarMeasurements(files, bands []string) (Measurements, error) {
	if len(files) != len(bands) {
		return nil, service.ConfigError(service.ErrBandCountMismatch, files[0], fmt.Sprintf("%d files for bands %v", len(files), bands))
	}
	var ms Measurements
	for _, band := range bands {
		found := false
		for _, f := range files {
			if name := filepath.Base(f); strings.Contains(name, band) {
				ms.Set(Measurement{Name: band, Path: name})
				found = true
				break
			}
		}
		if !found {
			return nil, service.ConfigError(service.ErrBandCountMismatch, files[0], "no file for band "+band)
		}
	}
	return ms, nil
}

// opticalMeasurements returns the bands of the multi-band raster and the quality mask
func opticalMeasurements(boaPath string, bands []string) Measurements {
	var ms Measurements
	name := filepath.Base(boaPath)
	for i, band := range bands {
		ms.Set(Measurement{Name: band, Path: name, Band: i + 1})
	}
	ms.Set(Measurement{Name: QualityBand, Path: filepath.Base(common.QualityMaskPath(boaPath))})
	return ms
}

// WriteDocument writes the document in YAML
func WriteDocument(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteDocument: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("WriteDocument.Encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("WriteDocument.Encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("WriteDocument.Close: %w", err)
	}
	return nil
}

// ReadDocument reads a document written by WriteDocument
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadDocument: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ReadDocument: %w", err)
	}
	return &doc, nil
}
