package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

const (
	ASFSearchURL          = "https://api.daac.asf.alaska.edu/services/search/param"
	ASFDownloadProductGRD = "https://datapool.asf.alaska.edu/GRD_HD/S{MISSION_VERSION}/{SCENE}.zip"

	searchRetryDelay = 10 * time.Second
)

// ASFSearcher implements SceneSearcher with the search API of the Alaska Satellite Facility (Sentinel-1 GRD)
type ASFSearcher struct {
	URL string
}

// NewASFSearcher creates a searcher on the public ASF API
func NewASFSearcher() *ASFSearcher {
	return &ASFSearcher{URL: ASFSearchURL}
}

// SearchURL returns the url of the query
func (s *ASFSearcher) SearchURL(query common.DownloadQuery) (string, error) {
	if query.Sensor != common.Sentinel1 {
		return "", fmt.Errorf("ASFSearcher: sensor %s not supported", query.Sensor)
	}
	if query.AOIWKT == "" {
		return "", service.ConfigError(service.ErrMissingSetting, "GENERAL.AOI", "footprint required")
	}
	params := url.Values{}
	params.Set("platform", "Sentinel-1")
	params.Set("processingLevel", "GRD_HD")
	params.Set("beamMode", "IW")
	params.Set("intersectsWith", query.AOIWKT)
	params.Set("output", "geojson")
	if !query.Start.IsZero() {
		params.Set("start", query.Start.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if !query.End.IsZero() {
		params.Set("end", query.End.UTC().Format("2006-01-02T15:04:05Z"))
	}
	switch query.Orbit {
	case common.OrbitAscending:
		params.Set("flightDirection", "ASCENDING")
	case common.OrbitDescending:
		params.Set("flightDirection", "DESCENDING")
	case "":
	default:
		return "", service.ConfigError(service.ErrMissingSetting, "DOWNLOAD.SAROrbitDirection", "unknown orbit direction "+query.Orbit)
	}
	return s.URL + "?" + params.Encode(), nil
}

type asfFeatureCollection struct {
	Features []struct {
		Properties struct {
			SceneName string `json:"sceneName"`
			URL       string `json:"url"`
		} `json:"properties"`
	} `json:"features"`
}

// ParseASFResults returns the scenes of a geojson response of the ASF API
func ParseASFResults(body []byte) ([]Scene, error) {
	var fc asfFeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("ParseASFResults: %w", err)
	}
	seen := service.StringSet{}
	var scenes []Scene
	for _, f := range fc.Features {
		name := f.Properties.SceneName
		if name == "" || seen.Exists(name) {
			continue
		}
		seen.Push(name)
		scenes = append(scenes, Scene{Name: name, URL: f.Properties.URL})
	}
	return scenes, nil
}

// Search implements SceneSearcher
func (s *ASFSearcher) Search(ctx context.Context, query common.DownloadQuery) ([]Scene, error) {
	u, err := s.SearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}
	var body []byte
	err = service.Retriable(ctx, func() error {
		var e error
		body, e = service.HTTPGetWithAuth(ctx, u, "", "", "")
		return e
	}, searchRetryDelay, 3)
	if err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}
	scenes, err := ParseASFResults(body)
	if err != nil {
		return nil, fmt.Errorf("Search.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("ASF: %d scenes found", len(scenes))
	return scenes, nil
}

// ASFImageProvider implements ImageProvider for Alaska Satellite Facility.
// The products are kept zipped, as expected by the terrain correction.
type ASFImageProvider struct {
	token string
}

// NewASFImageProvider creates a new ImageProvider from ASF, authenticated with an Earthdata token
func NewASFImageProvider(token string) *ASFImageProvider {
	return &ASFImageProvider{token: token}
}

// Name implements ImageProvider
func (ip *ASFImageProvider) Name() string {
	return "ASF"
}

// Download implements ImageProvider
func (ip *ASFImageProvider) Download(ctx context.Context, scene Scene, localDir string) (string, error) {
	localZip := sceneFilePath(localDir, scene.Name, service.ExtensionZIP)
	if _, err := os.Stat(localZip); err == nil {
		log.Logger(ctx).Sugar().Infof("%s already downloaded", scene.Name)
		return localZip, nil
	}
	u := scene.URL
	if u == "" {
		info, err := common.SceneInfo(scene.Name)
		if err != nil {
			return "", fmt.Errorf("ASFImageProvider.%w", err)
		}
		if !strings.HasPrefix(info["PRODUCT_TYPE"], "GRD") {
			return "", fmt.Errorf("ASFImageProvider: not supported product type: %s", info["PRODUCT_TYPE"])
		}
		u = common.FormatBrackets(ASFDownloadProductGRD, info)
	}
	if err := downloadWithToken(ctx, u, localZip, ip.token, ip.Name()+":"+scene.Name); err != nil {
		os.Remove(localZip)
		return "", fmt.Errorf("ASFImageProvider.%w", err)
	}
	return localZip, nil
}
