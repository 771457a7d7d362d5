package processor

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

// Fields of the FORCE parameter file filled from the settings, in this order
const (
	FieldFileQueue = "FILE_QUEUE"
	FieldDirLevel2 = "DIR_LEVEL2"
	FieldDirLog    = "DIR_LOG"
	FieldDirTemp   = "DIR_TEMP"
	FieldFileDEM   = "FILE_DEM"
	FieldDEMNoData = "DEM_NODATA"
	FieldNProc     = "NPROC"
	FieldNThread   = "NTHREAD"
)

// DatacubeDefinition is the file describing the grid of a FORCE datacube
const DatacubeDefinition = "datacube-definition.prj"

// ParameterTimeFormat is the layout of the timestamp of the generated parameter files
const ParameterTimeFormat = "20060102T150405"

// ParameterValues are the values written in the FORCE parameter template
type ParameterValues struct {
	FileQueue string
	DirLevel2 string
	DirLog    string
	DirTemp   string
	FileDEM   string
	DEMNoData float64
	NProc     int
	NThread   int
}

func (v ParameterValues) fields() [][2]string {
	return [][2]string{
		{FieldFileQueue, v.FileQueue},
		{FieldDirLevel2, v.DirLevel2},
		{FieldDirLog, v.DirLog},
		{FieldDirTemp, v.DirTemp},
		{FieldFileDEM, v.FileDEM},
		{FieldDEMNoData, strconv.FormatFloat(v.DEMNoData, 'f', -1, 64)},
		{FieldNProc, strconv.Itoa(v.NProc)},
		{FieldNThread, strconv.Itoa(v.NThread)},
	}
}

// FillParameters replaces the line starting with each field by "<field> = <value>".
// Each field must start exactly one line.
// Raise service.ErrInvalidParameterFile
func FillParameters(lines []string, values ParameterValues) ([]string, error) {
	out := append([]string(nil), lines...)
	for _, kv := range values.fields() {
		i, err := fieldIndex(lines, kv[0])
		if err != nil {
			return nil, err
		}
		out[i] = fmt.Sprintf("%s = %s", kv[0], kv[1])
	}
	return out, nil
}

func fieldIndex(lines []string, field string) (int, error) {
	index := -1
	for i, l := range lines {
		if strings.HasPrefix(l, field) {
			if index >= 0 {
				return -1, service.ConfigError(service.ErrInvalidParameterFile, field, "found more than once")
			}
			index = i
		}
	}
	if index < 0 {
		return -1, service.ConfigError(service.ErrInvalidParameterFile, field, "not found")
	}
	return index, nil
}

// WriteParameterFile fills a copy of the template and writes it as FORCE_default__<timestamp>.prm in outDir.
// The output directories of the parameters are created.
func WriteParameterFile(template, outDir string, values ParameterValues, now time.Time) (string, error) {
	lines, err := readLines(template)
	if err != nil {
		return "", fmt.Errorf("WriteParameterFile.%w", err)
	}
	if lines, err = FillParameters(lines, values); err != nil {
		return "", fmt.Errorf("WriteParameterFile[%s].%w", template, err)
	}
	for _, dir := range []string{values.DirLevel2, values.DirLog, values.DirTemp, outDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("WriteParameterFile: %w", err)
		}
	}
	path := filepath.Join(outDir, "FORCE_default__"+now.Format(ParameterTimeFormat)+".prm")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return "", fmt.Errorf("WriteParameterFile: %w", err)
	}
	return path, nil
}

// QueueStatus of a FORCE file queue
type QueueStatus struct {
	Path   string
	Done   int
	Queued int
}

// ReadQueueStatus reads the file queue referenced by the parameter file and counts its entries
func ReadQueueStatus(prmPath string) (QueueStatus, error) {
	lines, err := readLines(prmPath)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("ReadQueueStatus.%w", err)
	}
	i, err := fieldIndex(lines, FieldFileQueue)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("ReadQueueStatus[%s].%w", prmPath, err)
	}
	status := QueueStatus{Path: strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(lines[i], FieldFileQueue), " ="))}
	queue, err := readLines(status.Path)
	if err != nil {
		return status, fmt.Errorf("ReadQueueStatus.%w", err)
	}
	for _, l := range queue {
		switch {
		case strings.HasSuffix(l, "DONE"):
			status.Done++
		case strings.HasSuffix(l, "QUEUED"):
			status.Queued++
		}
	}
	return status, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("readLines: %w", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("readLines[%s]: %w", path, err)
	}
	return lines, nil
}

// Force runs the FORCE tools in their container
type Force struct {
	Engine    Engine
	Confirmer service.Confirmer
	Binds     []string
}

func (f *Force) run(ctx context.Context, args ...string) error {
	return f.Engine.Run(ctx, Invocation{
		Image:  ForceImage,
		Args:   args,
		Binds:  f.Binds,
		Filter: &ForceLogFilter{},
	})
}

// Level2 processes the scenes queued in the file queue of the parameter file, after confirmation
func (f *Force) Level2(ctx context.Context, prmPath string) error {
	status, err := ReadQueueStatus(prmPath)
	if err != nil {
		return fmt.Errorf("Level2.%w", err)
	}
	prompt := fmt.Sprintf("The following queue file will be queried by FORCE: %s\n"+
		"%d scenes are marked as 'DONE'\n%d scenes are marked as 'QUEUED'\n"+
		"Do you want to proceed with the batch processing of all %d scenes marked as 'QUEUED'?",
		status.Path, status.Done, status.Queued, status.Queued)
	if !f.Confirmer.Confirm(ctx, prompt) {
		return service.ErrCancelled
	}
	if err := f.run(ctx, "force-level2", prmPath); err != nil {
		return fmt.Errorf("Level2.%w", err)
	}
	return nil
}

// DownloadCatalogues downloads the metadata catalogues used by force-level1-csd in dir, after confirmation
func (f *Force) DownloadCatalogues(ctx context.Context, dir string) error {
	prompt := fmt.Sprintf("To download datasets via FORCE, it is necessary to have metadata catalogues stored "+
		"in a local directory (size ~9 GB).\nDo you want to download the latest catalogues into %s?", dir)
	if !f.Confirmer.Confirm(ctx, prompt) {
		return service.ErrCancelled
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("DownloadCatalogues: %w", err)
	}
	if err := f.run(ctx, "force-level1-csd", "-u", dir); err != nil {
		return fmt.Errorf("DownloadCatalogues.%w", err)
	}
	return nil
}

// TabulateGrid exports the grid of the datacube of level2Dir as kml, covering the WGS84 bounds
// (minx, miny, maxx, maxy) extended by one degree
func (f *Force) TabulateGrid(ctx context.Context, level2Dir string, bounds [4]float64) error {
	prjDir, err := DatacubeDir(level2Dir)
	if err != nil {
		return fmt.Errorf("TabulateGrid.%w", err)
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	if err := f.run(ctx, "force-tabulate-grid", prjDir,
		ff(bounds[1]-1), ff(bounds[3]+1), ff(bounds[0]-1), ff(bounds[2]+1), "kml"); err != nil {
		return fmt.Errorf("TabulateGrid.%w", err)
	}
	return nil
}

// Mosaic creates the mosaics of the datacube of level2Dir
func (f *Force) Mosaic(ctx context.Context, level2Dir string) error {
	prjDir, err := DatacubeDir(level2Dir)
	if err != nil {
		return fmt.Errorf("Mosaic.%w", err)
	}
	if err := f.run(ctx, "force-mosaic", prjDir); err != nil {
		return fmt.Errorf("Mosaic.%w", err)
	}
	return nil
}

// CubeOptions of force-cube
type CubeOptions struct {
	PrjFile    string // copied into the directory if set. Otherwise, it must already be there
	Resample   string // default: bilinear
	Resolution float64
}

// Cube reprojects every GeoTIFF of dir into the datacube, one at a time.
// Each file is removed once cubed.
func (f *Force) Cube(ctx context.Context, dir string, opts CubeOptions) error {
	if opts.Resample == "" {
		opts.Resample = "bilinear"
	}
	if opts.Resolution == 0 {
		opts.Resolution = 20
	}
	if opts.PrjFile == "" {
		if _, err := os.Stat(filepath.Join(dir, DatacubeDefinition)); err != nil {
			return fmt.Errorf("Cube: %w", err)
		}
	} else if err := copyFile(opts.PrjFile, filepath.Join(dir, filepath.Base(opts.PrjFile))); err != nil {
		return fmt.Errorf("Cube.%w", err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".tif") {
			files = append(files, path)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("Cube.WalkDir: %w", err)
	}
	sort.Strings(files)

	for i, file := range files {
		log.Logger(ctx).Sugar().Infof("running force-cube on %d/%d files", i+1, len(files))
		if err := f.run(ctx, "force-cube", file, dir, opts.Resample, strconv.FormatFloat(opts.Resolution, 'f', -1, 64)); err != nil {
			return fmt.Errorf("Cube.%w", err)
		}
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("Cube: %w", err)
		}
	}
	return nil
}

// DatacubeDir returns the directory of the single datacube definition found in dir (recursively)
func DatacubeDir(dir string) (string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && d.Name() == DatacubeDefinition {
			found = append(found, filepath.Dir(path))
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("DatacubeDir: %w", err)
	}
	switch len(found) {
	case 0:
		return "", service.ConfigError(service.ErrMissingSetting, DatacubeDefinition, "not found in "+dir)
	case 1:
		return found[0], nil
	}
	return "", service.ConfigError(service.ErrMissingSetting, DatacubeDefinition, fmt.Sprintf("%d copies found in %s", len(found), dir))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("copyFile: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("copyFile: %w", err)
	}
	return nil
}
