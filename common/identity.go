package common

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/airbusgeo/ardcube/service"
)

// DefaultAcquisitionTime is given to date-only tokens
const DefaultAcquisitionTime = "10:00:00"

// TileIdentity identifies an acquisition on a tile: "{tile_id}__{date_token}"
// Two identities are equal only if their date tokens are identical: 20210615 and 20210615T103000 differ.
type TileIdentity struct {
	TileID    string
	DateToken string
}

// IdentityOf returns the identity of a processed file.
// The tile is the name of the parent directory, the date token is extracted from the file name.
// Raise service.ErrUnrecognizedFilename
func IdentityOf(path string) (TileIdentity, error) {
	token, ok := DateToken(path)
	if !ok {
		return TileIdentity{}, service.ConfigError(service.ErrUnrecognizedFilename, path, "no date token")
	}
	tile := filepath.Base(filepath.Dir(path))
	if tile == "." || tile == string(filepath.Separator) {
		return TileIdentity{}, service.ConfigError(service.ErrUnrecognizedFilename, path, "no tile directory")
	}
	return TileIdentity{TileID: tile, DateToken: token}, nil
}

// Key returns "{tile_id}__{date_token}"
func (id TileIdentity) Key() string {
	return id.TileID + "__" + id.DateToken
}

func (id TileIdentity) String() string {
	return id.Key()
}

// AcquisitionTime returns the acquisition time of the token.
// Date-only tokens get DefaultAcquisitionTime.
func (id TileIdentity) AcquisitionTime() (time.Time, error) {
	switch len(id.DateToken) {
	case len("20060102"):
		t, err := time.Parse("20060102 15:04:05", id.DateToken+" "+DefaultAcquisitionTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("AcquisitionTime: %w", err)
		}
		return t, nil
	case len("20060102T150405"):
		t, err := time.Parse("20060102T150405", id.DateToken)
		if err != nil {
			return time.Time{}, fmt.Errorf("AcquisitionTime: %w", err)
		}
		return t, nil
	}
	return time.Time{}, service.ConfigError(service.ErrUnrecognizedFilename, id.DateToken, "date token")
}

// FormatDatetime formats the acquisition time as in catalog documents: YYYY-MM-DDTHH:MM:SS.000Z
func FormatDatetime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
