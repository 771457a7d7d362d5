package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/viper"
)

// DEM types that can be provisioned from the AOI
var DEMTypes = []string{"AW3D30", "SRTM 1Sec HGT", "SRTM 3Sec", "TDX90m"}

// Settings of a project, loaded once from the settings file
type Settings struct {
	ProjectDirectory string
	DataDirectory    string
	AOI              string

	Download   DownloadSettings
	Processing ProcessingSettings
	Prepare    PrepareSettings
}

type DownloadSettings struct {
	TimespanMin      time.Time
	TimespanMax      time.Time
	CloudCoverMin    float64
	CloudCoverMax    float64
	OrbitDirection   string // asc, desc or empty for both
	ASFToken         string
	FTPPattern       string // ftp://host:port/path/{SCENE}.zip
	FTPUser          string
	FTPPassword      string
	AWSAccessKey     string
	AWSSecretKey     string
	LandsatAWSPrefix string
}

type ProcessingSettings struct {
	DEM           string
	DEMNoData     float64
	NProc         int
	NThread       int
	UseDefault    bool
	Resolution    float64
	Polarizations []string
	Scaling       string
	SpeckleFilter string
	RefArea       string
	Engine        string // singularity or docker
	ContainerDir  string // directory of the .sif images (singularity) or registry prefix (docker)
}

type PrepareSettings struct {
	MinFileSize  int64
	NormalizeCRS bool
	SchemaDir    string
	ExportURI    string
}

// NewViper returns a viper instance with the defaults of the settings file
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("ini")
	v.SetDefault("download.SAROrbitDirection", "")
	v.SetDefault("download.OpticalCloudCoverRangeMin", 0)
	v.SetDefault("download.OpticalCloudCoverRangeMax", 100)
	v.SetDefault("download.LandsatAWSPrefix", "collection02/level-1/standard")
	v.SetDefault("processing.DEM_NoData", -32767)
	v.SetDefault("processing.NPROC", 4)
	v.SetDefault("processing.NTHREAD", 2)
	v.SetDefault("processing.UseDefault", true)
	v.SetDefault("processing.Resolution", 20)
	v.SetDefault("processing.Polarizations", "VV,VH")
	v.SetDefault("processing.Scaling", "linear")
	v.SetDefault("processing.SpeckleFilter", "")
	v.SetDefault("processing.RefArea", "gamma0")
	v.SetDefault("processing.Engine", "singularity")
	v.SetDefault("prepare.MinFileSize", 500000)
	v.SetDefault("prepare.NormalizeCRS", false)
	return v
}

// LoadSettings reads the settings file (ini format) into v, then builds the Settings
func LoadSettings(v *viper.Viper, path string) (*Settings, error) {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("LoadSettings.ReadInConfig: %w", err)
	}
	return SettingsFromViper(v)
}

// SettingsFromViper builds the Settings from an already loaded viper instance
func SettingsFromViper(v *viper.Viper) (*Settings, error) {
	s := Settings{
		ProjectDirectory: v.GetString("general.ProjectDirectory"),
		DataDirectory:    v.GetString("general.DataDirectory"),
		AOI:              v.GetString("general.AOI"),
		Download: DownloadSettings{
			CloudCoverMin:    v.GetFloat64("download.OpticalCloudCoverRangeMin"),
			CloudCoverMax:    v.GetFloat64("download.OpticalCloudCoverRangeMax"),
			OrbitDirection:   strings.ToLower(v.GetString("download.SAROrbitDirection")),
			ASFToken:         v.GetString("download.ASFToken"),
			FTPPattern:       v.GetString("download.FTPPattern"),
			FTPUser:          v.GetString("download.FTPUser"),
			FTPPassword:      v.GetString("download.FTPPassword"),
			AWSAccessKey:     v.GetString("download.AWSAccessKey"),
			AWSSecretKey:     v.GetString("download.AWSSecretKey"),
			LandsatAWSPrefix: v.GetString("download.LandsatAWSPrefix"),
		},
		Processing: ProcessingSettings{
			DEM:           v.GetString("processing.DEM"),
			DEMNoData:     v.GetFloat64("processing.DEM_NoData"),
			NProc:         v.GetInt("processing.NPROC"),
			NThread:       v.GetInt("processing.NTHREAD"),
			UseDefault:    v.GetBool("processing.UseDefault"),
			Resolution:    v.GetFloat64("processing.Resolution"),
			Polarizations: splitList(v.GetString("processing.Polarizations")),
			Scaling:       v.GetString("processing.Scaling"),
			SpeckleFilter: v.GetString("processing.SpeckleFilter"),
			RefArea:       v.GetString("processing.RefArea"),
			Engine:        strings.ToLower(v.GetString("processing.Engine")),
			ContainerDir:  v.GetString("processing.ContainerDirectory"),
		},
		Prepare: PrepareSettings{
			MinFileSize:  v.GetInt64("prepare.MinFileSize"),
			NormalizeCRS: v.GetBool("prepare.NormalizeCRS"),
			SchemaDir:    v.GetString("prepare.SchemaDirectory"),
			ExportURI:    v.GetString("prepare.ExportURI"),
		},
	}

	var err error
	if s.DataDirectory == "" {
		return nil, ConfigError(ErrMissingSetting, "GENERAL.DataDirectory")
	}
	if s.ProjectDirectory == "" {
		s.ProjectDirectory = filepath.Dir(s.DataDirectory)
	}
	if s.Download.TimespanMin, err = parseDate(v.GetString("download.TimespanMin")); err != nil {
		return nil, ConfigError(ErrMissingSetting, "DOWNLOAD.TimespanMin", err)
	}
	if s.Download.TimespanMax, err = parseDate(v.GetString("download.TimespanMax")); err != nil {
		return nil, ConfigError(ErrMissingSetting, "DOWNLOAD.TimespanMax", err)
	}
	if !s.Download.TimespanMax.IsZero() && s.Download.TimespanMax.Before(s.Download.TimespanMin) {
		return nil, ConfigError(ErrMissingSetting, "DOWNLOAD.TimespanMax", "before TimespanMin")
	}
	switch s.Download.OrbitDirection {
	case "", "asc", "desc":
	default:
		return nil, ConfigError(ErrMissingSetting, "DOWNLOAD.SAROrbitDirection", s.Download.OrbitDirection)
	}
	switch s.Processing.Engine {
	case "singularity", "docker":
	default:
		return nil, ConfigError(ErrMissingSetting, "PROCESSING.Engine", s.Processing.Engine)
	}
	if s.Prepare.SchemaDir == "" {
		s.Prepare.SchemaDir = s.ManagementDir("settings", "odc")
	}
	if s.Processing.ContainerDir == "" && s.Processing.Engine == "singularity" {
		s.Processing.ContainerDir = s.ManagementDir("singularity")
	}
	return &s, nil
}

func parseDate(str string) (time.Time, error) {
	if str == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseAny(str)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func splitList(str string) []string {
	var l []string
	for _, s := range strings.Split(str, ",") {
		if s = strings.TrimSpace(s); s != "" {
			l = append(l, s)
		}
	}
	return l
}

// Level1Dir returns the directory of the level-1 scenes of the sensor
func (s *Settings) Level1Dir(sensor string) string {
	return filepath.Join(s.DataDirectory, "level1", sensor)
}

// Level2Dir returns the directory of the processed data of the sensor
func (s *Settings) Level2Dir(sensor string) string {
	return filepath.Join(s.DataDirectory, "level2", sensor)
}

func (s *Settings) LogDir(sensor string) string  { return filepath.Join(s.DataDirectory, "log", sensor) }
func (s *Settings) TempDir(sensor string) string { return filepath.Join(s.DataDirectory, "temp", sensor) }
func (s *Settings) MetaDir() string              { return filepath.Join(s.DataDirectory, "meta") }
func (s *Settings) MiscDir(sub string) string    { return filepath.Join(s.DataDirectory, "misc", sub) }

// ManagementDir returns a directory of the management tree of the project (settings, parameter files, containers)
func (s *Settings) ManagementDir(sub ...string) string {
	return filepath.Join(append([]string{s.ProjectDirectory, "management"}, sub...)...)
}

// AOIPath returns the path of the AOI: the setting itself if it's a file, otherwise a file in misc/aoi
func (s *Settings) AOIPath() (string, error) {
	return s.resolveFile("GENERAL.AOI", s.AOI, s.MiscDir("aoi"))
}

// DEMPath returns the path of an existing DEM file (full path or file in misc/dem).
// If the DEM setting is one of DEMTypes, isType is true and path is empty.
func (s *Settings) DEMPath() (path string, isType bool, err error) {
	for _, t := range DEMTypes {
		if s.Processing.DEM == t {
			return "", true, nil
		}
	}
	path, err = s.resolveFile("PROCESSING.DEM", s.Processing.DEM, s.MiscDir("dem"))
	return path, false, err
}

func (s *Settings) resolveFile(field, value, dir string) (string, error) {
	if value == "" {
		return "", ConfigError(ErrMissingSetting, field)
	}
	if _, err := os.Stat(value); err == nil {
		return value, nil
	}
	path := filepath.Join(dir, value)
	if _, err := os.Stat(path); err != nil {
		return "", ConfigError(ErrMissingSetting, field, fmt.Sprintf("%s not found in %s", value, dir))
	}
	return path, nil
}

// SetupProject creates the directory tree of a new project
func SetupProject(projectDir string) error {
	for _, dir := range []string{
		"data/level1", "data/level2", "data/log", "data/meta", "data/misc/aoi", "data/misc/dem", "data/temp",
		"management/settings/odc", "management/settings/force", "management/settings/pyrosar", "management/singularity",
	} {
		if err := os.MkdirAll(filepath.Join(projectDir, dir), 0755); err != nil {
			return fmt.Errorf("SetupProject: %w", err)
		}
	}
	return nil
}
