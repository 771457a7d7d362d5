package common

// Catalog document properties
const (
	PropDatetime   = "datetime"
	PropOrbitState = "sat:orbit_state"
)

// Orbit states
const (
	OrbitAscending  = "asc"
	OrbitDescending = "desc"
)

// Scene tags returned by the archive searches
const (
	TagSourceID             = "sourceID"
	TagOrbitDirection       = "orbitDirection"
	TagRelativeOrbit        = "relativeOrbit"
	TagProductType          = "productType"
	TagDownloadURL          = "downloadURL"
	TagPolarisationMode     = "polarisationMode"
	TagCloudCoverPercentage = "cloudCoverPercentage"
)
