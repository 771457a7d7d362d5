package crop

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ClipResolver returns the clip features in the CRS of the rasters (implemented by *aoi.AOI)
type ClipResolver interface {
	ClipFeatures(targetSRSWKT string) (*aoi.ClipFeatures, error)
}

// Result of the crop of a source raster
type Result struct {
	Source  string
	Outcome Outcome
	removed bool
}

// ErrCancelled is returned when the user declines the batch
var ErrCancelled = service.ErrCancelled

// Discover returns the files of sourceDir (recursively) with the extension, sorted by path
func Discover(sourceDir, extension string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Discover: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// referenceCRS returns the CRS of the raster. All the rasters of a batch are assumed to share it.
func referenceCRS(rasterPath string) (string, error) {
	ds, err := godal.Open(rasterPath, godal.RasterOnly())
	if err != nil {
		return "", fmt.Errorf("referenceCRS.Open: %w", err)
	}
	defer ds.Close()
	sr := ds.SpatialRef()
	if sr == nil {
		return "", fmt.Errorf("referenceCRS: %s has no CRS", rasterPath)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		return "", fmt.Errorf("referenceCRS.WKT: %w", err)
	}
	return wkt, nil
}

type cropTask struct {
	source string
	outDir string
}

// Batch crops all the rasters of a directory tree in parallel
type Batch struct {
	Cropper   *Cropper
	Confirmer service.Confirmer // optional
	Now       func() time.Time
}

// NewBatch creates a batch with the default cropper
func NewBatch(confirmer service.Confirmer) *Batch {
	return &Batch{Cropper: NewCropper(), Confirmer: confirmer, Now: time.Now}
}

// CropBatch crops all the rasters of job.SourceDir with the default cropper
func CropBatch(ctx context.Context, job common.CropJob, resolver ClipResolver, confirmer service.Confirmer) ([]Result, error) {
	return NewBatch(confirmer).Run(ctx, job, resolver)
}

// Run discovers the rasters of job.SourceDir, crops them with job.WorkerCount workers into job.DestDir
// (same relative layout) and writes the run log in job.LogDir.
// A failure on a file does not stop the batch: it is reported as a Failed outcome.
// Results are in discovery order.
func (b *Batch) Run(ctx context.Context, job common.CropJob, resolver ClipResolver) ([]Result, error) {
	if job.Extension == "" {
		job.Extension = string(service.ExtensionGTiff)
	}
	if !strings.HasPrefix(job.Extension, ".") {
		job.Extension = "." + job.Extension
	}
	if same, err := sameDir(job.SourceDir, job.DestDir); err != nil {
		return nil, fmt.Errorf("CropBatch.%w", err)
	} else if same {
		return nil, service.ConfigError(service.ErrSameDirectory, job.DestDir)
	}
	files, err := Discover(job.SourceDir, job.Extension)
	if err != nil {
		return nil, fmt.Errorf("CropBatch.%w", err)
	}
	if len(files) == 0 {
		log.Logger(ctx).Sugar().Warnf("no %s file found in %s", job.Extension, job.SourceDir)
		return nil, nil
	}

	crsWKT, err := referenceCRS(files[0])
	if err != nil {
		return nil, fmt.Errorf("CropBatch.%w", err)
	}
	clip, err := resolver.ClipFeatures(crsWKT)
	if err != nil {
		return nil, fmt.Errorf("CropBatch.%w", err)
	}

	if b.Confirmer != nil && !b.Confirmer.Confirm(ctx, fmt.Sprintf("Crop %d files from %s to %s (clean: %v)?", len(files), job.SourceDir, job.DestDir, job.Clean)) {
		return nil, ErrCancelled
	}

	tasks := make([]cropTask, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(job.SourceDir, filepath.Dir(f))
		if err != nil {
			return nil, fmt.Errorf("CropBatch.Rel: %w", err)
		}
		tasks[i] = cropTask{source: f, outDir: filepath.Join(job.DestDir, rel)}
	}

	// Create group
	wg, wctx := errgroup.WithContext(ctx)
	jobChan := make(chan cropTask, len(tasks))
	resultChan := make(chan Result, len(tasks))

	workers := job.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers && i < len(tasks); i++ {
		wg.Go(func() error { return b.worker(wctx, jobChan, resultChan, clip, job.Clean) })
	}

	// Push jobs
	for _, t := range tasks {
		jobChan <- t
	}
	close(jobChan)

	// Wait
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("CropBatch.%w", err)
	}
	close(resultChan)

	outcomes := make(map[string]Outcome, len(tasks))
	var cleaned []string
	for r := range resultChan {
		outcomes[r.Source] = r.Outcome
		if r.removed {
			cleaned = append(cleaned, filepath.Dir(r.Source))
		}
	}
	results := make([]Result, len(files))
	nbFailed := 0
	for i, f := range files {
		o, ok := outcomes[f]
		if !ok {
			o = failed("not processed")
		}
		if o.Status == common.CropFailed {
			nbFailed++
		}
		results[i] = Result{Source: f, Outcome: o}
	}

	if job.Clean {
		removeEmptyDirs(ctx, job.SourceDir, cleaned)
	}

	logPath, err := WriteRunLog(job.LogDir, b.now(), results)
	if err != nil {
		return results, fmt.Errorf("CropBatch.%w", err)
	}
	log.Logger(ctx).Info("crop batch done", zap.Int("files", len(results)), zap.Int("failed", nbFailed), zap.String("log", logPath))
	return results, nil
}

func (b *Batch) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Batch) worker(ctx context.Context, jobs <-chan cropTask, results chan<- Result, clip *aoi.ClipFeatures, clean bool) error {
	for t := range jobs {
		o, removed := b.cropOne(ctx, t, clip, clean)
		results <- Result{Source: t.source, Outcome: o, removed: removed}
	}
	return nil
}

// cropOne never panics: a panic is reported as a Failed outcome for this file only.
// removed is true if the source was deleted (clean mode).
func (b *Batch) cropOne(ctx context.Context, t cropTask, clip *aoi.ClipFeatures, clean bool) (o Outcome, removed bool) {
	defer func() {
		if r := recover(); r != nil {
			o, removed = failed("panic: %v", r), false
		}
	}()
	ctx = log.With(ctx, "source", t.source)
	o = b.Cropper.Crop(ctx, t.source, clip, t.outDir)
	switch o.Status {
	case common.CropFailed:
		log.Logger(ctx).Warn("crop failed", zap.String("reason", o.Reason))
	case common.CropSuccess:
		if clean && o.Output != t.source {
			if err := os.Remove(t.source); err != nil {
				log.Logger(ctx).Warn("unable to remove source", zap.Error(err))
			} else {
				removed = true
			}
		}
	}
	return o, removed
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("Abs: %w", err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("Abs: %w", err)
	}
	return absA == absB, nil
}

// removeEmptyDirs removes the directories of the cleaned sources that are now empty, as well as their
// emptied parents up to the root (included). Other directories are left untouched.
func removeEmptyDirs(ctx context.Context, root string, dirs []string) {
	root = filepath.Clean(root)
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		for dir = filepath.Clean(dir); ; dir = filepath.Dir(dir) {
			if rel, err := filepath.Rel(root, dir); err != nil || strings.HasPrefix(rel, "..") {
				break
			}
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(dir); err != nil {
				log.Logger(ctx).Sugar().Warnf("unable to remove %s: %v", dir, err)
				break
			}
			if dir == root {
				break
			}
		}
	}
}
