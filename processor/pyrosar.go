package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

// TerrainCorrectionParams are the arguments of the geocoding script
type TerrainCorrectionParams struct {
	InputDir      string
	OutputDir     string
	Resolution    float64
	Polarizations []string
	AOIPath       string
	Scaling       string // linear or db
	DEMPath       string
	DEMNoData     float64
	SpeckleFilter string // empty: no filter
	RefArea       string // beta0, gamma0, sigma0
}

// Args returns the arguments of the script, in its positional order
func (p TerrainCorrectionParams) Args() []string {
	speckle := p.SpeckleFilter
	if speckle == "" {
		speckle = "False"
	}
	return []string{
		p.InputDir,
		p.OutputDir,
		strconv.FormatFloat(p.Resolution, 'f', -1, 64),
		strings.Join(p.Polarizations, ","),
		p.AOIPath,
		p.Scaling,
		p.DEMPath,
		strconv.FormatFloat(p.DEMNoData, 'f', -1, 64),
		speckle,
		p.RefArea,
	}
}

// PyroSAR runs the pyroSAR scripts in their container
type PyroSAR struct {
	Engine    Engine
	Confirmer service.Confirmer
	Binds     []string
	// Scripts
	GeocodeScript string
	DEMScript     string
}

func (p *PyroSAR) run(ctx context.Context, script string, args ...string) error {
	return p.Engine.Run(ctx, Invocation{
		Image:  PyroSARImage,
		Args:   append([]string{"python", script}, args...),
		Binds:  p.Binds,
		Filter: &PythonLogFilter{},
	})
}

// TerrainCorrection geocodes the SAR scenes of params.InputDir into params.OutputDir
func (p *PyroSAR) TerrainCorrection(ctx context.Context, params TerrainCorrectionParams) error {
	if err := os.MkdirAll(params.OutputDir, 0755); err != nil {
		return fmt.Errorf("TerrainCorrection: %w", err)
	}
	if err := p.run(ctx, p.GeocodeScript, params.Args()...); err != nil {
		return fmt.Errorf("TerrainCorrection.%w", err)
	}
	return nil
}

// DEMFileName returns the name of the DEM of the type covering the AOI
func DEMFileName(demType, aoiPath string) string {
	base := filepath.Base(aoiPath)
	return demType + "__" + strings.TrimSuffix(base, filepath.Ext(base)) + ".tif"
}

// CreateDEM provisions a DEM of the type covering the AOI in outDir (<type>__<aoi>.tif) and returns its path
// and its nodata value. If the DEM already exists, it is recreated only after confirmation.
func (p *PyroSAR) CreateDEM(ctx context.Context, area *aoi.AOI, demType, outDir string) (string, float64, error) {
	aoiPath, err := area.WGS84Copy()
	if err != nil {
		return "", 0, fmt.Errorf("CreateDEM.%w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", 0, fmt.Errorf("CreateDEM: %w", err)
	}
	demPath := filepath.Join(outDir, DEMFileName(demType, aoiPath))

	create := true
	if _, err := os.Stat(demPath); err == nil {
		create = p.Confirmer.Confirm(ctx, fmt.Sprintf("%s already exist.\n"+
			"Do you want to create a new %s DEM for your AOI and overwrite the existing file?\n"+
			"If not, the existing file will be used for processing!", demPath, demType))
	}
	if create {
		if err := p.run(ctx, p.DEMScript, aoiPath, demPath, demType); err != nil {
			return "", 0, fmt.Errorf("CreateDEM.%w", err)
		}
	} else {
		log.Logger(ctx).Sugar().Infof("using existing DEM %s", demPath)
	}

	nodata, err := ReadNoData(demPath)
	if err != nil {
		return "", 0, fmt.Errorf("CreateDEM.%w", err)
	}
	return demPath, nodata, nil
}

// ReadNoData returns the nodata value of the first band of the raster (0 if not set)
func ReadNoData(path string) (float64, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return 0, fmt.Errorf("ReadNoData.Open: %w", err)
	}
	defer ds.Close()
	bands := ds.Bands()
	if len(bands) == 0 {
		return 0, fmt.Errorf("ReadNoData: %s has no band", path)
	}
	nodata, _ := bands[0].NoData()
	return nodata, nil
}
