package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/processor"
	"github.com/airbusgeo/ardcube/service"
)

// ForceAcquirer implements Acquirer with force-level1-csd (optical sensors)
type ForceAcquirer struct {
	Force *processor.Force
}

// Catalogues returns whether the metadata catalogues used by force-level1-csd are in metaDir
func Catalogues(metaDir string) bool {
	matches, _ := filepath.Glob(filepath.Join(metaDir, "metadata_*.csv"))
	return len(matches) > 0
}

// Args returns the arguments of force-level1-csd for the query
func (a *ForceAcquirer) Args(query common.DownloadQuery) ([]string, error) {
	abbr := query.Sensor.ForceAbbreviation()
	if abbr == "" {
		return nil, fmt.Errorf("ForceAcquirer: sensor %s not supported", query.Sensor)
	}
	if query.AOIPath == "" {
		return nil, service.ConfigError(service.ErrMissingSetting, "GENERAL.AOI")
	}
	args := []string{"force-level1-csd", "-s", abbr}
	if !query.Start.IsZero() && !query.End.IsZero() {
		args = append(args, "-d", query.Start.Format("20060102")+","+query.End.Format("20060102"))
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	args = append(args, "-c", ff(query.CloudCoverMin)+","+ff(query.CloudCoverMax),
		query.MetaDir, query.Level1Dir, QueuePath(query.Level1Dir), query.AOIPath)
	return args, nil
}

// Acquire implements Acquirer. The metadata catalogues are downloaded first if missing (after confirmation).
func (a *ForceAcquirer) Acquire(ctx context.Context, query common.DownloadQuery) error {
	args, err := a.Args(query)
	if err != nil {
		return fmt.Errorf("Acquire.%w", err)
	}
	if !Catalogues(query.MetaDir) {
		if err := a.Force.DownloadCatalogues(ctx, query.MetaDir); err != nil {
			return fmt.Errorf("Acquire.%w", err)
		}
	}
	if err := os.MkdirAll(query.Level1Dir, 0755); err != nil {
		return fmt.Errorf("Acquire: %w", err)
	}
	err = a.Force.Engine.Run(ctx, processor.Invocation{
		Image:  processor.ForceImage,
		Args:   args,
		Binds:  a.Force.Binds,
		Filter: &processor.ForceLogFilter{},
	})
	if err != nil {
		return fmt.Errorf("Acquire.%w", err)
	}
	return nil
}
