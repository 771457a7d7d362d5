package main

import (
	"context"
	"fmt"
	"os"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/downloader"
	"github.com/airbusgeo/ardcube/processor"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/spf13/cobra"
)

var sceneListFile string
var footprintFile string

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "download the level-1 scenes of the sensor intersecting the AOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sensor()
		if err != nil {
			return err
		}
		return download(cmd.Context(), s)
	},
}

func init() {
	addSensorFlag(downloadCmd)
	downloadCmd.Flags().StringVar(&footprintFile, "footprint", "", "geojson geometry used to search the SAR scenes instead of the AOI footprint")
	downloadCmd.Flags().StringVar(&sceneListFile, "scenes", "", "file listing the scenes to download (one per line) instead of searching them")
}

func downloadQuery(sensor common.Sensor) (common.DownloadQuery, error) {
	aoiPath, err := settings.AOIPath()
	if err != nil {
		return common.DownloadQuery{}, err
	}
	query := common.DownloadQuery{
		Sensor:        sensor,
		AOIPath:       aoiPath,
		Start:         settings.Download.TimespanMin,
		End:           settings.Download.TimespanMax,
		CloudCoverMin: settings.Download.CloudCoverMin,
		CloudCoverMax: settings.Download.CloudCoverMax,
		Orbit:         settings.Download.OrbitDirection,
		Level1Dir:     settings.Level1Dir(string(sensor)),
		MetaDir:       settings.MetaDir(),
	}
	if sensor.Family() == common.SAR && footprintFile != "" {
		data, err := os.ReadFile(footprintFile)
		if err != nil {
			return query, err
		}
		query.AOIWKT, err = service.GeoJSONToWKT(data)
		return query, err
	}
	if sensor.Family() == common.SAR {
		area, err := aoi.Load(aoiPath)
		if err != nil {
			return query, err
		}
		if query.AOIWKT, err = area.Footprint(); err != nil {
			return query, err
		}
	}
	return query, nil
}

func download(ctx context.Context, sensor common.Sensor) error {
	query, err := downloadQuery(sensor)
	if err != nil {
		return err
	}
	acquirer, err := newAcquirer(ctx, sensor)
	if err != nil {
		return err
	}
	if err := acquirer.Acquire(ctx, query); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	log.Logger(ctx).Sugar().Infof("level-1 %s data in %s", sensor, query.Level1Dir)
	return nil
}

func newAcquirer(ctx context.Context, sensor common.Sensor) (downloader.Acquirer, error) {
	dl := settings.Download
	var searcher downloader.SceneSearcher
	if sceneListFile != "" {
		scenes, err := downloader.ReadSceneList(sceneListFile)
		if err != nil {
			return nil, err
		}
		searcher = scenes
	}

	if sensor.Family() == common.SAR {
		if searcher == nil {
			searcher = downloader.NewASFSearcher()
		}
		var providers []downloader.ImageProvider
		if dl.ASFToken != "" {
			providers = append(providers, downloader.NewASFImageProvider(dl.ASFToken))
		}
		if dl.FTPPattern != "" {
			providers = append(providers, downloader.NewFTPImageProvider(dl.FTPPattern, dl.FTPUser, dl.FTPPassword))
		}
		return downloader.NewDownloader(searcher, confirmer, providers...), nil
	}

	if searcher != nil {
		var providers []downloader.ImageProvider
		if dl.AWSAccessKey != "" {
			providers = append(providers, downloader.NewLandsatAwsImageProvider(dl.AWSAccessKey, dl.AWSSecretKey, dl.LandsatAWSPrefix))
		}
		if dl.FTPPattern != "" {
			ftp := downloader.NewFTPImageProvider(dl.FTPPattern, dl.FTPUser, dl.FTPPassword)
			ftp.Unarchive = true
			providers = append(providers, ftp)
		}
		d := downloader.NewDownloader(searcher, confirmer, providers...)
		d.Queue = true
		return d, nil
	}

	engine, err := processor.NewEngine(ctx, settings.Processing.Engine, settings.Processing.ContainerDir)
	if err != nil {
		return nil, err
	}
	return &downloader.ForceAcquirer{Force: &processor.Force{Engine: engine, Confirmer: confirmer, Binds: binds()}}, nil
}

func binds() []string {
	b := service.StringSet{}
	b.Push(settings.ProjectDirectory)
	b.Push(settings.DataDirectory)
	return b.Sorted()
}
