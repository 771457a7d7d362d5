package downloader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/cavaliercoder/grab"
	"github.com/mholt/archiver"
)

// ErrProductNotFound is returned when the provider does not have the product
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return "product not found: " + e.Product
}

func fmtBytes(n int64) string {
	v, unit := float64(n), 0
	for v >= 1024 && unit < 3 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f%s", v, []string{"B", "KB", "MB", "GB"}[unit])
}

// logProgress logs the progress of the transfer every 5%, until it's done
func logProgress(ctx context.Context, prefix string, resp *grab.Response) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	next, lastBytes, start := 0.0, int64(0), time.Now()
	for {
		select {
		case <-t.C:
			if p := resp.Progress(); p >= next {
				complete := resp.BytesComplete()
				rate := float64(complete-lastBytes) / time.Since(start).Seconds()
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*p, fmtBytes(complete), fmtBytes(resp.Size), fmtBytes(int64(rate)))
				next, lastBytes, start = p+0.05, complete, time.Now()
			}
		case <-resp.Done:
			return
		}
	}
}

// downloadWithToken downloads url into localFile, authenticated by a bearer token (copied on redirects)
func downloadWithToken(ctx context.Context, url, localFile, token, displayPrefix string) error {
	req, err := grab.NewRequest(localFile, url)
	if err != nil {
		return fmt.Errorf("downloadWithToken.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	if token != "" {
		req.HTTPRequest.Header.Set("Authorization", "Bearer "+token)
	}
	if err := download(ctx, req, displayPrefix, token != ""); err != nil {
		return fmt.Errorf("downloadWithToken.%w", err)
	}
	return nil
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Set("Authorization", auth[0])
	}
	return nil
}

// download runs the request, classifying the http errors
func download(ctx context.Context, req *grab.Request, displayPrefix string, copyAuthOnRedirect bool) error {
	client := grab.NewClient()
	if copyAuthOnRedirect {
		client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	resp := client.Do(req)

	logProgress(ctx, displayPrefix, resp)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch code := resp.HTTPResponse.StatusCode; {
		case code == http.StatusNotFound:
			return ErrProductNotFound{Product: req.URL().String()}
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

// unarchive file with basic check and returns the path of the extracted product
// (the single root entry of the archive, or localDir). All errors are temporary.
func unarchive(localZip, localDir string) (string, error) {
	tmpdir, err := os.MkdirTemp(localDir, filepath.Base(localZip))
	if err != nil {
		return "", service.MakeTemporary(err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return "", service.MakeTemporary(err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return "", service.MakeTemporary(err)
	}
	if len(files) == 0 {
		return "", service.MakeTemporary(fmt.Errorf("empty archive"))
	}
	for _, f := range files {
		if err := os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(localDir, f.Name())); err != nil {
			return "", fmt.Errorf("unarchive: %w", err)
		}
	}
	if len(files) == 1 {
		return filepath.Join(localDir, files[0].Name()), nil
	}
	return localDir, nil
}

// sceneFilePath returns the path of the scene, given the directory and the scene name
func sceneFilePath(dir, sceneName string, ext service.Extension) string {
	return filepath.Join(dir, sceneName+"."+string(ext))
}

func splitLines(str string) []string {
	var lines []string
	for _, l := range strings.Split(str, "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	return lines
}
