package common

import (
	"time"
)

// DownloadQuery is the input of the level-1 acquisition
type DownloadQuery struct {
	Sensor        Sensor    `json:"sensor"`
	AOIPath       string    `json:"aoi_path"`
	AOIWKT        string    `json:"aoi_wkt"` // WGS84 footprint
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	CloudCoverMin float64   `json:"cloud_cover_min"`
	CloudCoverMax float64   `json:"cloud_cover_max"`
	Orbit         string    `json:"orbit"` // OrbitAscending, OrbitDescending or empty
	Level1Dir     string    `json:"level1_dir"`
	MetaDir       string    `json:"meta_dir"`
}

// ProcessingJob is the input of the level-2 processors
type ProcessingJob struct {
	Sensor    Sensor  `json:"sensor"`
	Level1Dir string  `json:"level1_dir"`
	Level2Dir string  `json:"level2_dir"`
	LogDir    string  `json:"log_dir"`
	TempDir   string  `json:"temp_dir"`
	AOIPath   string  `json:"aoi_path"`
	DEMPath   string  `json:"dem_path"`
	DEMNoData float64 `json:"dem_nodata"`
	NProc     int     `json:"nproc"`
	NThread   int     `json:"nthread"`

	// Optical (FORCE)
	ParameterTemplate string `json:"parameter_template,omitempty"` // filled with the fields above
	ParameterFile     string `json:"parameter_file,omitempty"`     // used as is, if ParameterTemplate is empty

	// SAR (pyroSAR)
	Resolution    float64  `json:"resolution,omitempty"`
	Polarizations []string `json:"polarizations,omitempty"`
	Scaling       string   `json:"scaling,omitempty"`
	SpeckleFilter string   `json:"speckle_filter,omitempty"`
	RefArea       string   `json:"ref_area,omitempty"`
}

// CropJob is the input of a batch crop
type CropJob struct {
	SourceDir   string `json:"source_dir"`
	DestDir     string `json:"dest_dir"`
	LogDir      string `json:"log_dir"`
	Extension   string `json:"extension"` // e.g. ".tif"
	WorkerCount int    `json:"worker_count"`
	Clean       bool   `json:"clean"`
}

// DocumentJob is the input of the catalog document generation
type DocumentJob struct {
	Sensor      Sensor `json:"sensor"`
	Level2Dir   string `json:"level2_dir"`
	LogDir      string `json:"log_dir"`
	SchemaDir   string `json:"schema_dir"`
	Incremental bool   `json:"incremental"`
	MinFileSize int64  `json:"min_file_size"`
	ExportURI   string `json:"export_uri,omitempty"`
}
