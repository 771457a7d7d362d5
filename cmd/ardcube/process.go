package main

import (
	"context"
	"fmt"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/processor"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/spf13/cobra"
)

var mosaic, tabulateGrid bool
var cubeOpts processor.CubeOptions

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "process the level-1 data of the sensor to level-2 (FORCE for optical sensors, pyroSAR for sentinel1)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sensor()
		if err != nil {
			return err
		}
		return process(cmd.Context(), s)
	},
}

var cubeCmd = &cobra.Command{
	Use:   "cube <directory>",
	Short: "reproject the GeoTIFFs of the directory into the FORCE datacube",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProcessor(cmd.Context())
		if err != nil {
			return err
		}
		return p.Force.Cube(cmd.Context(), args[0], cubeOpts)
	},
}

func init() {
	addSensorFlag(processCmd)
	processCmd.Flags().BoolVar(&mosaic, "mosaic", false, "create the mosaics of the level-2 datacube (optical)")
	processCmd.Flags().BoolVar(&tabulateGrid, "grid", false, "write the kml of the datacube grid covering the AOI (optical)")

	cubeCmd.Flags().StringVar(&cubeOpts.PrjFile, "prj", "", "datacube definition to use (default: the one of the directory)")
	cubeCmd.Flags().StringVar(&cubeOpts.Resample, "resample", "bilinear", "resampling method")
	cubeCmd.Flags().Float64Var(&cubeOpts.Resolution, "resolution", 20, "resolution of the datacube")
	rootCmd.AddCommand(cubeCmd)
}

func newProcessor(ctx context.Context) (*processor.Processor, error) {
	engine, err := processor.NewEngine(ctx, settings.Processing.Engine, settings.Processing.ContainerDir)
	if err != nil {
		return nil, err
	}
	return processor.New(processor.Config{
		Engine:    engine,
		Confirmer: confirmer,
		Binds:     binds(),
		ScriptDir: settings.ManagementDir("settings", "pyrosar"),
	}), nil
}

func process(ctx context.Context, sensor common.Sensor) error {
	p, err := newProcessor(ctx)
	if err != nil {
		return err
	}
	aoiPath, err := settings.AOIPath()
	if err != nil {
		return err
	}
	area, err := aoi.Load(aoiPath)
	if err != nil {
		return err
	}
	ps := settings.Processing
	job := common.ProcessingJob{
		Sensor:        sensor,
		Level1Dir:     settings.Level1Dir(string(sensor)),
		Level2Dir:     settings.Level2Dir(string(sensor)),
		LogDir:        settings.LogDir(string(sensor)),
		TempDir:       settings.TempDir(string(sensor)),
		AOIPath:       aoiPath,
		DEMNoData:     ps.DEMNoData,
		NProc:         ps.NProc,
		NThread:       ps.NThread,
		Resolution:    ps.Resolution,
		Polarizations: ps.Polarizations,
		Scaling:       ps.Scaling,
		SpeckleFilter: ps.SpeckleFilter,
		RefArea:       ps.RefArea,
	}

	demPath, isType, err := settings.DEMPath()
	if err != nil {
		return err
	}
	if isType {
		if demPath, job.DEMNoData, err = p.PyroSAR.CreateDEM(ctx, area, ps.DEM, settings.MiscDir("dem")); err != nil {
			return err
		}
	}
	job.DEMPath = demPath

	if ps.UseDefault {
		job.ParameterTemplate = settings.ManagementDir("settings", "force", "FORCE_default.prm")
	} else {
		job.ParameterFile = settings.ManagementDir("settings", "force", "FORCE_custom.prm")
	}

	if err := p.Process(ctx, job); err != nil {
		return fmt.Errorf("process: %w", err)
	}
	log.Logger(ctx).Sugar().Infof("level-2 %s data in %s", sensor, job.Level2Dir)

	if sensor.Family() == common.SAR {
		return nil
	}
	if tabulateGrid {
		bounds, err := area.WGS84Bounds()
		if err != nil {
			return err
		}
		if err := p.Force.TabulateGrid(ctx, job.Level2Dir, bounds); err != nil {
			return err
		}
	}
	if mosaic {
		if err := p.Force.Mosaic(ctx, job.Level2Dir); err != nil {
			return err
		}
	}
	return nil
}
