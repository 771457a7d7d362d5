// Package processor runs the level-2 processors (FORCE for optical sensors, pyroSAR for SAR) in containers.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

// Processor is the main class of this package
type Processor struct {
	Force   *Force
	PyroSAR *PyroSAR
	Now     func() time.Time
}

// Config of a Processor
type Config struct {
	Engine    Engine
	Confirmer service.Confirmer
	// Directories mounted in the containers (project and data directories)
	Binds []string
	// Directory of the pyroSAR scripts (snap.py, dem.py)
	ScriptDir string
}

// New creates a Processor
func New(cfg Config) *Processor {
	return &Processor{
		Force: &Force{Engine: cfg.Engine, Confirmer: cfg.Confirmer, Binds: cfg.Binds},
		PyroSAR: &PyroSAR{
			Engine:        cfg.Engine,
			Confirmer:     cfg.Confirmer,
			Binds:         cfg.Binds,
			GeocodeScript: filepath.Join(cfg.ScriptDir, "snap.py"),
			DEMScript:     filepath.Join(cfg.ScriptDir, "dem.py"),
		},
		Now: time.Now,
	}
}

// Process produces the level-2 data of job.Level1Dir in job.Level2Dir
func (p *Processor) Process(ctx context.Context, job common.ProcessingJob) error {
	ctx = log.With(ctx, "sensor", job.Sensor)
	if _, err := os.Stat(job.Level1Dir); err != nil {
		return service.ConfigError(service.ErrMissingSetting, job.Level1Dir, "does level-1 data exist for "+string(job.Sensor)+"?")
	}
	if job.Sensor.Family() == common.SAR {
		return p.processSAR(ctx, job)
	}
	return p.processOptical(ctx, job)
}

func (p *Processor) processSAR(ctx context.Context, job common.ProcessingJob) error {
	err := p.PyroSAR.TerrainCorrection(ctx, TerrainCorrectionParams{
		InputDir:      job.Level1Dir,
		OutputDir:     job.Level2Dir,
		Resolution:    job.Resolution,
		Polarizations: job.Polarizations,
		AOIPath:       job.AOIPath,
		Scaling:       job.Scaling,
		DEMPath:       job.DEMPath,
		DEMNoData:     job.DEMNoData,
		SpeckleFilter: job.SpeckleFilter,
		RefArea:       job.RefArea,
	})
	if err != nil {
		return fmt.Errorf("processSAR.%w", err)
	}
	return nil
}

func (p *Processor) processOptical(ctx context.Context, job common.ProcessingJob) error {
	prm := job.ParameterFile
	if job.ParameterTemplate != "" {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		var err error
		prm, err = WriteParameterFile(job.ParameterTemplate, filepath.Dir(job.ParameterTemplate), OpticalParameters(job), now())
		if err != nil {
			return fmt.Errorf("processOptical.%w", err)
		}
		log.Logger(ctx).Sugar().Infof("parameter file %s written", prm)
	}
	if prm == "" {
		return service.ConfigError(service.ErrMissingSetting, "FORCE parameter file")
	}
	if err := p.Force.Level2(ctx, prm); err != nil {
		return fmt.Errorf("processOptical.%w", err)
	}
	return nil
}

// OpticalParameters returns the values of the FORCE parameter file for the job.
// The file queue is level1/<sensor>/pool.txt.
func OpticalParameters(job common.ProcessingJob) ParameterValues {
	return ParameterValues{
		FileQueue: filepath.Join(job.Level1Dir, "pool.txt"),
		DirLevel2: job.Level2Dir,
		DirLog:    job.LogDir,
		DirTemp:   job.TempDir,
		FileDEM:   job.DEMPath,
		DEMNoData: job.DEMNoData,
		NProc:     job.NProc,
		NThread:   job.NThread,
	}
}
