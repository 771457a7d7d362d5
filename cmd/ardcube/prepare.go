package main

import (
	"fmt"

	"github.com/airbusgeo/ardcube/catalog"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/spf13/cobra"
)

var overwrite bool
var exportURI string
var exportZip bool

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "write the dataset documents of the level-2 data of the sensor",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := sensor()
		if err != nil {
			return err
		}
		job := common.DocumentJob{
			Sensor:      s,
			Level2Dir:   settings.Level2Dir(string(s)),
			LogDir:      settings.LogDir(string(s)),
			SchemaDir:   settings.Prepare.SchemaDir,
			Incremental: !overwrite,
			MinFileSize: settings.Prepare.MinFileSize,
			ExportURI:   settings.Prepare.ExportURI,
		}
		if exportURI != "" {
			job.ExportURI = exportURI
		}

		c := catalog.Catalog{NormalizeCRS: settings.Prepare.NormalizeCRS, ArchiveTiles: exportZip}
		if job.ExportURI != "" {
			if c.Storage, err = service.NewStorageStrategy(ctx, job.ExportURI); err != nil {
				return err
			}
		}
		documents, err := c.Prepare(ctx, job)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		log.Logger(ctx).Sugar().Infof("%d documents written in %s", len(documents), job.Level2Dir)
		return nil
	},
}

func init() {
	addSensorFlag(prepareCmd)
	prepareCmd.Flags().BoolVar(&overwrite, "overwrite", false, "regenerate every document (default: only the acquisitions without one)")
	prepareCmd.Flags().StringVar(&exportURI, "export-uri", "", "upload the documents and their rasters (gs://bucket/prefix, s3://bucket/prefix or a directory)")
	prepareCmd.Flags().BoolVar(&exportZip, "zip", false, "export one zip archive per tile instead of the files")
}
