package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mholt/archiver"
)

// Extension of an exported file
type Extension string

// Some supported extensions
const (
	NoExtension    Extension = ""
	ExtensionGTiff Extension = "tif"
	ExtensionYAML  Extension = "yaml"
	ExtensionZIP   Extension = "zip"
	ExtensionSAFE  Extension = "SAFE" // Sentinel product, a directory
)

// ErrFileNotFound is returned by Storage.Download
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// Storage is a service to export processed files (rasters and catalog documents)
type Storage interface {
	// Upload persists the local file under key and returns its uri
	Upload(ctx context.Context, localPath, key string) (string, error)
	// UploadDir zips the local directory and persists it under key.zip
	UploadDir(ctx context.Context, localDir, key string) (string, error)
	// Download retrieves key into localPath
	// Raise ErrFileNotFound
	Download(ctx context.Context, key, localPath string) error
}

// StorageStrategy implements Storage on local, gs or s3 uris
type StorageStrategy struct {
	storage storage.Strategy // file and gs
	s3      *s3.Client
	uri     uri.DefaultUri
}

// NewStorageStrategy creates a new StorageStrategy (currently supported: local path, file://, gs://, s3://)
func NewStorageStrategy(ctx context.Context, storageURI string) (*StorageStrategy, error) {
	u, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.ParseURI: %w", err)
	}

	ss := StorageStrategy{uri: u}
	if strings.ToLower(u.Protocol()) == "s3" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("NewStorageStrategy.LoadDefaultConfig: %w", err)
		}
		ss.s3 = s3.NewFromConfig(cfg)
		return &ss, nil
	}

	if ss.storage, err = u.NewStorageStrategy(ctx); err != nil {
		return nil, fmt.Errorf("NewStorageStrategy: %w", err)
	}
	return &ss, nil
}

// Upload implements Storage
func (ss *StorageStrategy) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("Upload.Open: %w", err)
	}
	defer f.Close()

	dst := ss.getPath(key)
	if ss.s3 != nil {
		uploader := manager.NewUploader(ss.s3, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
		})
		if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(ss.uri.Bucket()),
			Key:    aws.String(path.Join(ss.uri.Path(), key)),
			Body:   f,
		}); err != nil {
			return "", MakeTemporary(fmt.Errorf("Upload to %s: %w", dst, err))
		}
		return dst, nil
	}

	if err := ss.storage.UploadFile(ctx, dst, f); err != nil {
		return "", fmt.Errorf("Upload.UploadFile to %s: %w", dst, err)
	}
	return dst, nil
}

// UploadDir implements Storage
func (ss *StorageStrategy) UploadDir(ctx context.Context, localDir, key string) (string, error) {
	files, err := os.ReadDir(localDir)
	if err != nil {
		return "", fmt.Errorf("UploadDir.ReadDir: %w", err)
	}
	var sources []string
	for _, f := range files {
		sources = append(sources, filepath.Join(localDir, f.Name()))
	}

	zipfile, err := os.CreateTemp("", "*."+string(ExtensionZIP))
	if err != nil {
		return "", fmt.Errorf("UploadDir.CreateTemp: %w", err)
	}
	zipfile.Close()
	os.Remove(zipfile.Name()) // archiver refuses to overwrite
	defer os.Remove(zipfile.Name())

	zipper := archiver.NewZip()
	zipper.CompressionLevel = flate.BestSpeed
	if err := zipper.Archive(sources, zipfile.Name()); err != nil {
		return "", fmt.Errorf("UploadDir.Archive: %w", err)
	}
	return ss.Upload(ctx, zipfile.Name(), WithExt(key, ExtensionZIP))
}

// Download implements Storage
func (ss *StorageStrategy) Download(ctx context.Context, key, localPath string) error {
	src := ss.getPath(key)
	if ss.s3 != nil {
		f, err := os.Create(localPath)
		if err != nil {
			return fmt.Errorf("Download.Create: %w", err)
		}
		defer f.Close()
		downloader := manager.NewDownloader(ss.s3)
		if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(ss.uri.Bucket()),
			Key:    aws.String(path.Join(ss.uri.Path(), key)),
		}); err != nil {
			return fmt.Errorf("Download from %s: %w", src, err)
		}
		return nil
	}
	if err := ss.storage.DownloadToFile(ctx, src, localPath); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{src}
		}
		return fmt.Errorf("Download.DownloadToFile from %s: %w", src, err)
	}
	return nil
}

// getPath returns the uri of the key
func (ss *StorageStrategy) getPath(key string) string {
	u := ss.uri.String()
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u + key
}

func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}

func GetExt(filePath string) Extension {
	ext := path.Ext(filePath)
	if ext == "" {
		return NoExtension
	}
	return Extension(ext[1:])
}
