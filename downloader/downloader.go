// Package downloader acquires the level-1 scenes of an area of interest.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

// Acquirer fetches the level-1 scenes matching the query into query.Level1Dir
type Acquirer interface {
	Acquire(ctx context.Context, query common.DownloadQuery) error
}

// Scene is a level-1 product to download
type Scene struct {
	Name string
	URL  string // optional, the provider builds it from the name if empty
}

// SceneSearcher lists the scenes matching a query
type SceneSearcher interface {
	Search(ctx context.Context, query common.DownloadQuery) ([]Scene, error)
}

// ImageProvider is the interface of an image download service
type ImageProvider interface {
	// Download the scene to localDir and returns the path of the product (file or directory)
	Download(ctx context.Context, scene Scene, localDir string) (string, error)
	// Name of the provider
	Name() string
}

// Downloader searches the scenes then downloads each of them with the first successful provider
type Downloader struct {
	Searcher  SceneSearcher
	Providers []ImageProvider
	Confirmer service.Confirmer
	Retries   int
	Delay     time.Duration
	// Queue appends the downloaded products to the FORCE file queue of the level-1 directory
	Queue bool
}

// NewDownloader creates a Downloader retrying temporary errors three times
func NewDownloader(searcher SceneSearcher, confirmer service.Confirmer, providers ...ImageProvider) *Downloader {
	return &Downloader{
		Searcher:  searcher,
		Providers: providers,
		Confirmer: confirmer,
		Retries:   3,
		Delay:     10 * time.Second,
	}
}

// Acquire implements Acquirer
func (d *Downloader) Acquire(ctx context.Context, query common.DownloadQuery) error {
	ctx = log.With(ctx, "sensor", query.Sensor)
	if len(d.Providers) == 0 {
		return service.ConfigError(service.ErrMissingSetting, "DOWNLOAD", "no image provider configured")
	}
	scenes, err := d.Searcher.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("Acquire.%w", err)
	}
	if len(scenes) == 0 {
		log.Logger(ctx).Info("no scene found")
		return nil
	}
	if d.Confirmer != nil && !d.Confirmer.Confirm(ctx, fmt.Sprintf("%d scenes found. Do you want to download them into %s?", len(scenes), query.Level1Dir)) {
		return service.ErrCancelled
	}
	if err := os.MkdirAll(query.Level1Dir, 0755); err != nil {
		return fmt.Errorf("Acquire: %w", err)
	}

	for i, scene := range scenes {
		log.Logger(ctx).Sugar().Infof("downloading %s (%d/%d)", scene.Name, i+1, len(scenes))
		product, err := d.download(ctx, scene, query.Level1Dir)
		if err != nil {
			return fmt.Errorf("Acquire.%w", err)
		}
		if d.Queue {
			if err := AppendToQueue(QueuePath(query.Level1Dir), product); err != nil {
				return fmt.Errorf("Acquire.%w", err)
			}
		}
	}
	return nil
}

// download with the first successful imageProvider
func (d *Downloader) download(ctx context.Context, scene Scene, localDir string) (string, error) {
	var err error
	for _, imageProvider := range d.Providers {
		var product string
		e := service.Retriable(ctx, func() error {
			var err error
			product, err = imageProvider.Download(ctx, scene, localDir)
			if err != nil && !service.Temporary(err) {
				return service.MakeFatal(err)
			}
			return err
		}, d.Delay, d.Retries)
		if err = service.MergeErrors(false, err, e); err == nil {
			return product, nil
		}
		log.Logger(ctx).Sugar().Warnf("%s: %v", imageProvider.Name(), e)
	}
	return "", fmt.Errorf("download[%s]: %w", scene.Name, err)
}

// QueuePath returns the path of the FORCE file queue of a level-1 directory
func QueuePath(level1Dir string) string {
	return filepath.Join(level1Dir, "pool.txt")
}

// AppendToQueue marks the product as QUEUED in the file queue, unless it is already listed
func AppendToQueue(queuePath, product string) error {
	data, err := os.ReadFile(queuePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("AppendToQueue: %w", err)
	}
	for _, l := range splitLines(string(data)) {
		if strings.Fields(l)[0] == product {
			return nil
		}
	}
	f, err := os.OpenFile(queuePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("AppendToQueue: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s QUEUED\n", product); err != nil {
		f.Close()
		return fmt.Errorf("AppendToQueue: %w", err)
	}
	return f.Close()
}

// SceneList is a SceneSearcher returning a fixed list of scenes
type SceneList []Scene

// Search implements SceneSearcher
func (l SceneList) Search(ctx context.Context, query common.DownloadQuery) ([]Scene, error) {
	return l, nil
}

// ReadSceneList reads a file listing one scene name per line (blank lines and # comments are ignored)
func ReadSceneList(path string) (SceneList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadSceneList: %w", err)
	}
	var l SceneList
	for _, name := range splitLines(string(data)) {
		l = append(l, Scene{Name: name})
	}
	return l, nil
}
