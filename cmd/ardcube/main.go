package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var v *viper.Viper = service.NewViper()
var settings *service.Settings
var confirmer service.Confirmer

var settingsFile string
var sensorName string
var assumeYes bool
var remoteVSI bool
var blocksize string
var numCachedBlocks int
var startTime time.Time

var rootCmd = &cobra.Command{
	Use:   "ardcube",
	Short: "analysis ready data cube: download, process, crop and catalog satellite imagery",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		confirmer = service.NewPrompt()
		if assumeYes {
			confirmer = service.AlwaysYes
		}
		godal.RegisterAll()
		if remoteVSI {
			if err := service.RegisterVSIHandlers(cmd.Context(), blocksize, numCachedBlocks); err != nil {
				return err
			}
		}
		if cmd == setupCmd {
			return nil
		}
		var err error
		if settingsFile != "" {
			settings, err = service.LoadSettings(v, settingsFile)
		} else {
			settings, err = service.SettingsFromViper(v)
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup <project directory>",
	Short: "create the directory tree of a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.SetupProject(args[0]); err != nil {
			return err
		}
		log.Logger(cmd.Context()).Sugar().Infof("project created in %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (ini)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVar(&remoteVSI, "remote", false, "let gdal read gs:// and s3:// rasters")
	rootCmd.PersistentFlags().StringVar(&blocksize, "blocksize", "512k", "remote cache blocksize")
	rootCmd.PersistentFlags().IntVar(&numCachedBlocks, "numblocks", 1000, "number of remote cached blocks")

	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides GENERAL.DataDirectory)")
	rootCmd.PersistentFlags().String("aoi", "", "area of interest (overrides GENERAL.AOI)")
	rootCmd.PersistentFlags().String("engine", "", "container engine: singularity or docker (overrides PROCESSING.Engine)")
	bindFlag("general.DataDirectory", "data-dir")
	bindFlag("general.AOI", "aoi")
	bindFlag("processing.Engine", "engine")

	rootCmd.AddCommand(setupCmd, downloadCmd, processCmd, cropCmd, prepareCmd)
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// addSensorFlag adds the mandatory --sensor flag to cmd
func addSensorFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sensorName, "sensor", "s", "", "sensor: "+fmt.Sprint(common.Sensors))
	_ = cmd.MarkFlagRequired("sensor")
}

func sensor() (common.Sensor, error) {
	return common.ParseSensor(sensorName)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer log.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}
