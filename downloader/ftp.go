package downloader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/jlaffaye/ftp"
)

// FTPImageProvider implements ImageProvider for connection to FTP
type FTPImageProvider struct {
	host        string
	pathPattern string
	user        string
	pword       string
	tls         bool
	// Unarchive extracts the downloaded archive (the Sentinel-1 zips are kept as is)
	Unarchive bool
}

// Name implements ImageProvider
func (ip *FTPImageProvider) Name() string {
	return "FTP"
}

// NewFTPImageProvider creates a new ImageProvider for ftp download link
// pathPattern: full ftp path, including host, port and folder tree. i.e: ftp://ftp.example.org:21/Images/{SCENE}.zip (see common.FormatBrackets)
// Port 990 means implicit TLS.
func NewFTPImageProvider(pathPattern, user, pword string) *FTPImageProvider {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 {
		splits = append(splits, "{SCENE}.zip")
	}
	splitHost := strings.SplitN(splits[0], ":", 2)
	return &FTPImageProvider{
		host:        splits[0],
		tls:         len(splitHost) == 2 && splitHost[1] == "990",
		pathPattern: splits[1],
		user:        user,
		pword:       pword,
	}
}

// RemotePath returns the path of the scene on the server
func (ip *FTPImageProvider) RemotePath(scene Scene) (string, error) {
	info, err := common.SceneInfo(scene.Name)
	if err != nil {
		return "", fmt.Errorf("RemotePath.%w", err)
	}
	return common.FormatBrackets(ip.pathPattern, info), nil
}

// progressCounter counts the number of bytes written to it and logs the progress every 5%
type progressCounter struct {
	ctx     context.Context
	prefix  string
	total   int64
	current int64
	next    float64
}

func (pc *progressCounter) Write(p []byte) (int, error) {
	pc.current += int64(len(p))
	if pc.total > 0 {
		if progress := float64(pc.current) / float64(pc.total); progress >= pc.next {
			log.Logger(pc.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", pc.prefix, 100*progress, fmtBytes(pc.current), fmtBytes(pc.total))
			pc.next = progress + 0.05
		}
	}
	return len(p), nil
}

// Download implements ImageProvider
func (ip *FTPImageProvider) Download(ctx context.Context, scene Scene, localDir string) (string, error) {
	path, err := ip.RemotePath(scene)
	if err != nil {
		return "", fmt.Errorf("FTPImageProvider.%w", err)
	}

	// Connection to FTP
	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second), ftp.DialWithContext(ctx)}
	if ip.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(ip.host, ftpOption...)
	if err != nil {
		return "", service.MakeTemporary(fmt.Errorf("FTPImageProvider.Dial: %w", err))
	}
	defer c.Quit()
	if err = c.Login(ip.user, ip.pword); err != nil {
		return "", fmt.Errorf("FTPImageProvider.Login: %w", err)
	}

	// Get file size
	s, _ := c.FileSize(path)

	// Get file stream
	r, err := c.Retr(path)
	if err != nil {
		return "", fmt.Errorf("FTPImageProvider.Retr: %w", ErrProductNotFound{Product: path})
	}
	defer r.Close()

	// Download to local file
	ext := service.GetExt(path)
	switch {
	case strings.HasSuffix(path, ".tar.gz"):
		ext = "tar.gz"
	case ext == service.NoExtension:
		ext = service.ExtensionZIP
	}
	localFile := sceneFilePath(localDir, scene.Name, ext)
	destFile, err := os.Create(localFile)
	if err != nil {
		return "", fmt.Errorf("FTPImageProvider.Create: %w", err)
	}
	_, err = io.Copy(destFile, io.TeeReader(r, &progressCounter{ctx: ctx, prefix: ip.Name() + ":" + scene.Name, total: s}))
	if e := destFile.Close(); err == nil {
		err = e
	}
	if err != nil {
		os.Remove(localFile)
		return "", service.MakeTemporary(fmt.Errorf("FTPImageProvider.Copy: %w", err))
	}

	if !ip.Unarchive {
		return localFile, nil
	}
	defer os.Remove(localFile)
	product, err := unarchive(localFile, localDir)
	if err != nil {
		return "", fmt.Errorf("FTPImageProvider.Unarchive: %w", err)
	}
	return product, nil
}
