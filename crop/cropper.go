// Package crop masks rasters with the area of interest and trims them to their data window.
package crop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// DefaultNoData is used for the rasters without declared nodata. It is also the value of the pixels outside the mask.
const DefaultNoData = 0.

// Outcome of the crop of one raster
type Outcome struct {
	Status common.CropStatus
	Output string // Success only
	Reason string // Failed only
}

// String returns the outcome as written in the run log
func (o Outcome) String() string {
	switch o.Status {
	case common.CropSuccess:
		return "success"
	case common.CropFailed:
		return "failed: " + o.Reason
	}
	return o.Status.String()
}

func failed(format string, args ...interface{}) Outcome {
	return Outcome{Status: common.CropFailed, Reason: fmt.Sprintf(format, args...)}
}

// Cropper crops single rasters
type Cropper struct {
	CreationOptions []string
}

// DefaultCreationOptions of the GeoTIFF outputs
var DefaultCreationOptions = []string{"TILED=YES", "COMPRESS=LZW"}

// NewCropper creates a cropper writing tiled, compressed GeoTIFFs
func NewCropper() *Cropper {
	return &Cropper{CreationOptions: DefaultCreationOptions}
}

// Crop masks the raster with the clip features (all touched), trims it to the window of valid pixels
// and writes it in outDir with the same name.
// Nothing is written if the raster does not intersect the features or if it is empty inside the mask.
// Only the part of the raster covering the bounds of the features is read.
// Errors are returned as Failed outcomes.
func (c *Cropper) Crop(ctx context.Context, rasterPath string, clip *aoi.ClipFeatures, outDir string) Outcome {
	if err := ctx.Err(); err != nil {
		return failed("%v", err)
	}

	ds, err := godal.Open(rasterPath, godal.RasterOnly())
	if err != nil {
		return failed("open: %v", err)
	}
	defer ds.Close()

	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return failed("geotransform: %v", err)
	}

	ok, err := clip.Intersects(rasterBounds(gt, st.SizeX, st.SizeY))
	if err != nil {
		return failed("%v", err)
	}
	if !ok {
		return Outcome{Status: common.CropSkippedNoOverlap}
	}

	clipBounds, err := clip.Bounds()
	if err != nil {
		return failed("%v", err)
	}
	rw := readWindow(gt, clipBounds, st.SizeX, st.SizeY)
	if rw.Empty() {
		return Outcome{Status: common.CropSkippedNoOverlap}
	}
	// From now on, pixels are relative to the read window
	rgt := shiftGeoTransform(gt, rw)

	mask, err := rasterizeMask(clip, rgt, rw.Width, rw.Height)
	if err != nil {
		return failed("%v", err)
	}

	bands := ds.Bands()
	nodata, hasNoData := DefaultNoData, false
	if len(bands) > 0 {
		nodata, hasNoData = bands[0].NoData()
		if !hasNoData {
			nodata = DefaultNoData
		}
	}
	data := make([][]float64, len(bands))
	for i, band := range bands {
		data[i] = make([]float64, rw.Width*rw.Height)
		if err := band.Read(rw.Col, rw.Row, data[i], rw.Width, rw.Height); err != nil {
			return failed("read band %d: %v", i+1, err)
		}
	}

	if allNoData(data, mask, nodata) {
		return Outcome{Status: common.CropSkippedAllNoData}
	}
	w, ok := dataWindow(data, mask, nodata, rw.Width, rw.Height)
	if !ok {
		return Outcome{Status: common.CropSkippedAllNoData}
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return failed("%v", err)
	}
	output := filepath.Join(outDir, filepath.Base(rasterPath))
	if err := c.write(ds, output, data, mask, nodata, rgt, w, rw.Width); err != nil {
		os.Remove(output)
		return failed("%v", err)
	}
	log.Logger(ctx).Debug("cropped", zap.String("source", rasterPath), zap.String("output", output),
		zap.Bool("declared_nodata", hasNoData), zap.Int("col", rw.Col+w.Col), zap.Int("row", rw.Row+w.Row),
		zap.Int("width", w.Width), zap.Int("height", w.Height))
	return Outcome{Status: common.CropSuccess, Output: output}
}

// rasterizeMask burns the clip features in a Byte mask aligned with the raster
func rasterizeMask(clip *aoi.ClipFeatures, gt [6]float64, width, height int) ([]byte, error) {
	mds, err := godal.Create(godal.Memory, "", 1, godal.Byte, width, height)
	if err != nil {
		return nil, fmt.Errorf("rasterizeMask.Create: %w", err)
	}
	defer mds.Close()
	if err := mds.SetGeoTransform(gt); err != nil {
		return nil, fmt.Errorf("rasterizeMask.SetGeoTransform: %w", err)
	}

	geoms, sr, err := clip.Geometries()
	if err != nil {
		return nil, fmt.Errorf("rasterizeMask.%w", err)
	}
	defer sr.Close()
	defer func() {
		for _, g := range geoms {
			g.Close()
		}
	}()
	if err := mds.SetSpatialRef(sr); err != nil {
		return nil, fmt.Errorf("rasterizeMask.SetSpatialRef: %w", err)
	}
	for _, g := range geoms {
		if err := mds.RasterizeGeometry(g, godal.Values(1), godal.AllTouched()); err != nil {
			return nil, fmt.Errorf("rasterizeMask.RasterizeGeometry: %w", err)
		}
	}

	mask := make([]byte, width*height)
	if err := mds.Bands()[0].Read(0, 0, mask, width, height); err != nil {
		return nil, fmt.Errorf("rasterizeMask.Read: %w", err)
	}
	return mask, nil
}

// write creates the GeoTIFF of the window, preserving the band count and the data type of the source
func (c *Cropper) write(src *godal.Dataset, output string, data [][]float64, mask []byte, nodata float64, gt [6]float64, w Window, width int) error {
	st := src.Structure()
	out, err := godal.Create(godal.GTiff, output, st.NBands, st.DataType, w.Width, w.Height, godal.CreationOption(c.CreationOptions...))
	if err != nil {
		return fmt.Errorf("write.Create: %w", err)
	}
	if err := out.SetGeoTransform(shiftGeoTransform(gt, w)); err != nil {
		out.Close()
		return fmt.Errorf("write.SetGeoTransform: %w", err)
	}
	if sr := src.SpatialRef(); sr != nil {
		err := out.SetSpatialRef(sr)
		sr.Close()
		if err != nil {
			out.Close()
			return fmt.Errorf("write.SetSpatialRef: %w", err)
		}
	}
	for i, band := range out.Bands() {
		if err := band.SetNoData(nodata); err != nil {
			out.Close()
			return fmt.Errorf("write.SetNoData: %w", err)
		}
		if err := band.Write(0, 0, extract(data[i], mask, nodata, width, w), w.Width, w.Height); err != nil {
			out.Close()
			return fmt.Errorf("write.Write[band %d]: %w", i+1, err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write.Close: %w", err)
	}
	return nil
}
