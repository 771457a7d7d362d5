package common

//go:generate go run github.com/dmarkham/enumer -type CropStatus -trimprefix Crop -text

// CropStatus is the outcome of cropping one raster
type CropStatus int

const (
	CropSuccess CropStatus = iota
	CropSkippedNoOverlap
	CropSkippedAllNoData
	CropFailed
)

// Skipped returns true for the expected-empty outcomes
func (s CropStatus) Skipped() bool {
	return s == CropSkippedNoOverlap || s == CropSkippedAllNoData
}
