// Package catalog groups the processed rasters by acquisition and writes the dataset documents describing them.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"go.uber.org/zap"
)

// Catalog is the main class of this package
type Catalog struct {
	NormalizeCRS bool
	Storage      service.Storage // optional, to export the documents and their rasters
	ArchiveTiles bool            // export one zip archive per tile directory instead of the files
}

// Prepare builds the file set of job.Level2Dir, writes the documents and exports them if a storage is configured.
// Returns the paths of the documents.
func (c *Catalog) Prepare(ctx context.Context, job common.DocumentJob) ([]string, error) {
	ctx = log.With(ctx, "sensor", job.Sensor)
	schemas, err := LoadSchemas(job.SchemaDir, job.Sensor)
	if err != nil {
		return nil, fmt.Errorf("Prepare.%w", err)
	}

	builder := NewBuilder(job.LogDir)
	if job.MinFileSize > 0 {
		builder.MinFileSize = job.MinFileSize
	}
	fileSet, err := builder.Build(ctx, job.Level2Dir, job.Sensor, job.Incremental)
	if err != nil {
		return nil, fmt.Errorf("Prepare.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("creating documents for %d %s acquisitions", fileSet.Len(), job.Sensor)

	generator := NewGenerator(job.Sensor, schemas)
	generator.NormalizeCRS = c.NormalizeCRS
	paths, err := generator.Generate(ctx, fileSet)
	if err != nil {
		return paths, fmt.Errorf("Prepare.%w", err)
	}

	if c.Storage != nil {
		if err := c.Export(ctx, job.Level2Dir, paths); err != nil {
			return paths, fmt.Errorf("Prepare.%w", err)
		}
	}
	return paths, nil
}

// Export uploads the documents and the rasters they reference, keeping their path relative to level2Dir.
// With ArchiveTiles, the whole directory of each document is uploaded as <tile>.zip.
func (c *Catalog) Export(ctx context.Context, level2Dir string, documents []string) error {
	if c.ArchiveTiles {
		return c.exportTiles(ctx, level2Dir, documents)
	}
	for _, docPath := range documents {
		doc, err := ReadDocument(docPath)
		if err != nil {
			return fmt.Errorf("Export.%w", err)
		}
		dir := filepath.Dir(docPath)
		files := service.StringSet{}
		files.Push(docPath)
		for _, m := range doc.Measurements {
			files.Push(filepath.Join(dir, m.Path))
		}
		for _, f := range files.Sorted() {
			key, err := filepath.Rel(level2Dir, f)
			if err != nil {
				return fmt.Errorf("Export.Rel: %w", err)
			}
			uri, err := c.Storage.Upload(ctx, f, filepath.ToSlash(key))
			if err != nil {
				return fmt.Errorf("Export.%w", err)
			}
			log.Logger(ctx).Debug("exported", zap.String("file", f), zap.String("uri", uri))
		}
	}
	return nil
}

func (c *Catalog) exportTiles(ctx context.Context, level2Dir string, documents []string) error {
	tiles := service.StringSet{}
	for _, docPath := range documents {
		tiles.Push(filepath.Dir(docPath))
	}
	for _, tile := range tiles.Sorted() {
		key, err := filepath.Rel(level2Dir, tile)
		if err != nil {
			return fmt.Errorf("Export.Rel: %w", err)
		}
		uri, err := c.Storage.UploadDir(ctx, tile, filepath.ToSlash(key))
		if err != nil {
			return fmt.Errorf("Export.%w", err)
		}
		log.Logger(ctx).Debug("exported", zap.String("tile", tile), zap.String("uri", uri))
	}
	return nil
}
