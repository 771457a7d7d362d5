package downloader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	landsatAwsBucket = "usgs-landsat"
	landsatAwsRegion = "us-west-2"
)

// LandsatAwsImageProvider implements ImageProvider for the USGS Landsat bucket (requester pays).
// The product is downloaded as a directory of files, as expected by the FORCE file queue.
type LandsatAwsImageProvider struct {
	accessKeyId     string
	secretAccessKey string
	prefix          string // e.g. collection02/level-1/standard
}

// Name implements ImageProvider
func (ip *LandsatAwsImageProvider) Name() string {
	return "LandsatAws"
}

// NewLandsatAwsImageProvider creates a new ImageProvider from LandsatAws
func NewLandsatAwsImageProvider(accessKeyId, secretAccessKey, prefix string) *LandsatAwsImageProvider {
	return &LandsatAwsImageProvider{accessKeyId: accessKeyId, secretAccessKey: secretAccessKey, prefix: prefix}
}

// ProductPrefix returns the prefix of the objects of the scene in the bucket
func (ip *LandsatAwsImageProvider) ProductPrefix(sceneName string) (string, error) {
	info, err := common.SceneInfo(sceneName)
	if err != nil {
		return "", fmt.Errorf("ProductPrefix.%w", err)
	}
	var sensorCollection string
	switch info["MISSION_ID"] {
	case "LC08", "LC09", "LO08", "LO09":
		sensorCollection = "oli-tirs"
	case "LE07":
		sensorCollection = "etm"
	case "LT04", "LT05":
		sensorCollection = "tm"
	default:
		return "", fmt.Errorf("ProductPrefix: constellation not supported: %s", info["MISSION_ID"])
	}
	return path.Join(ip.prefix, sensorCollection, info["YEAR"], info["PATH"], info["ROW"], sceneName) + "/", nil
}

// Download implements ImageProvider
func (ip *LandsatAwsImageProvider) Download(ctx context.Context, scene Scene, localDir string) (string, error) {
	prefix, err := ip.ProductPrefix(scene.Name)
	if err != nil {
		return "", fmt.Errorf("LandsatAwsImageProvider.%w", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ip.accessKeyId, ip.secretAccessKey, "")),
		config.WithRegion(landsatAwsRegion),
	)
	if err != nil {
		return "", fmt.Errorf("LandsatAwsImageProvider config.LoadDefaultConfig: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})

	paginator := s3.NewListObjectsV2Paginator(client,
		&s3.ListObjectsV2Input{
			Bucket:       aws.String(landsatAwsBucket),
			Prefix:       aws.String(prefix),
			RequestPayer: "requester",
		},
		func(o *s3.ListObjectsV2PaginatorOptions) {
			o.Limit = 200 // more than the number of files in a Landsat product
		},
	)

	productDir := filepath.Join(localDir, scene.Name)
	if err = os.MkdirAll(productDir, 0755); err != nil {
		return "", fmt.Errorf("LandsatAwsImageProvider os.MkdirAll: %w", err)
	}

	nbFiles := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("LandsatAwsImageProvider paginator.NextPage: %w", err)
		}
		for _, object := range page.Contents {
			objectKey := aws.ToString(object.Key)
			localFilePath := filepath.Join(productDir, objectKey[strings.LastIndex(objectKey, "/")+1:])
			if err := downloadSingleObjectToFile(ctx, downloader, landsatAwsBucket, objectKey, localFilePath); err != nil {
				return "", fmt.Errorf("LandsatAwsImageProvider.%w", err)
			}
			nbFiles++
		}
	}
	if nbFiles == 0 {
		os.Remove(productDir)
		return "", ErrProductNotFound{Product: scene.Name}
	}
	log.Logger(ctx).Sugar().Debugf("%s: %d files downloaded", scene.Name, nbFiles)
	return productDir, nil
}

func downloadSingleObjectToFile(ctx context.Context, downloader *manager.Downloader, bucketName string, objectKey string, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket:       aws.String(bucketName),
		Key:          aws.String(objectKey),
		RequestPayer: "requester",
	})
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to download object %s:%s: %w",
			bucketName, objectKey, err)
	}
	return nil
}
