package service

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	osioGcs "github.com/airbusgeo/osio/gcs"
	osioS3 "github.com/airbusgeo/osio/s3"
)

// RegisterVSIHandlers lets GDAL read gs:// and s3:// rasters (remote DEM, level-2 archives)
// through cached block readers
func RegisterVSIHandlers(ctx context.Context, blockSize string, numCachedBlocks int) error {
	gcsh, err := osioGcs.Handle(ctx)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.GCSHandle: %w", err)
	}
	gcsa, err := osio.NewAdapter(gcsh, osio.BlockSize(blockSize), osio.NumCachedBlocks(numCachedBlocks))
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.NewAdapter: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
		return fmt.Errorf("RegisterVSIHandlers.gs: %w", err)
	}

	s3h, err := osioS3.Handle(ctx)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.S3Handle: %w", err)
	}
	s3a, err := osio.NewAdapter(s3h, osio.BlockSize(blockSize), osio.NumCachedBlocks(numCachedBlocks))
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.NewAdapter: %w", err)
	}
	if err := godal.RegisterVSIHandler("s3://", s3a); err != nil {
		return fmt.Errorf("RegisterVSIHandlers.s3: %w", err)
	}
	return nil
}
