package main

import (
	"fmt"
	"runtime"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/crop"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/spf13/cobra"
)

var cropJob common.CropJob

var cropCmd = &cobra.Command{
	Use:   "crop <source directory> <destination directory>",
	Short: "crop every raster of the source directory to the AOI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		aoiPath, err := settings.AOIPath()
		if err != nil {
			return err
		}
		area, err := aoi.Load(aoiPath)
		if err != nil {
			return err
		}
		job := cropJob
		job.SourceDir, job.DestDir = args[0], args[1]
		if job.LogDir == "" {
			job.LogDir = settings.LogDir("crop")
		}
		results, err := crop.CropBatch(ctx, job, area, confirmer)
		if err != nil {
			return fmt.Errorf("crop: %w", err)
		}
		var cropped, skipped, failed int
		for _, r := range results {
			switch {
			case r.Outcome.Status == common.CropSuccess:
				cropped++
			case r.Outcome.Status.Skipped():
				skipped++
			default:
				failed++
			}
		}
		log.Logger(ctx).Sugar().Infof("%d rasters: %d cropped, %d skipped, %d failed", len(results), cropped, skipped, failed)
		return nil
	},
}

func init() {
	cropCmd.Flags().StringVar(&cropJob.Extension, "ext", ".tif", "extension of the rasters to crop")
	cropCmd.Flags().StringVar(&cropJob.LogDir, "log-dir", "", "directory of the run log (default: <data>/log/crop)")
	cropCmd.Flags().IntVarP(&cropJob.WorkerCount, "workers", "j", runtime.NumCPU(), "number of rasters cropped concurrently")
	cropCmd.Flags().BoolVar(&cropJob.Clean, "clean", false, "remove the source rasters once cropped")
}
