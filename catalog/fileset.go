package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
)

// DefaultMinFileSize is the size (in bytes) under which a processed file is assumed to be invalid
const DefaultMinFileSize = 500000

// SkipLogTimeFormat is the layout of the timestamp prefixing the skip logs
const SkipLogTimeFormat = "20060102T150405"

// Entry groups the files of an acquisition on a tile, in discovery order
type Entry struct {
	Identity common.TileIdentity
	Files    []string
}

// FileSet is a set of entries, iterated in the order of their identity keys
type FileSet struct {
	entries map[common.TileIdentity][]string
}

// NewFileSet creates an empty FileSet
func NewFileSet() *FileSet {
	return &FileSet{entries: map[common.TileIdentity][]string{}}
}

// Add appends the file to the entry of its identity
func (s *FileSet) Add(id common.TileIdentity, file string) {
	s.entries[id] = append(s.entries[id], file)
}

// Remove the entry of the identity
func (s *FileSet) Remove(id common.TileIdentity) {
	delete(s.entries, id)
}

// Len returns the number of entries
func (s *FileSet) Len() int {
	return len(s.entries)
}

// Files returns a copy of the files of the entry
func (s *FileSet) Files(id common.TileIdentity) []string {
	return append([]string(nil), s.entries[id]...)
}

// Entries returns the entries sorted by identity key
func (s *FileSet) Entries() []Entry {
	ids := make([]common.TileIdentity, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Key() < ids[j].Key() })
	entries := make([]Entry, len(ids))
	for i, id := range ids {
		entries[i] = Entry{Identity: id, Files: s.Files(id)}
	}
	return entries
}

// Builder scans a processed tree and groups the rasters by identity
type Builder struct {
	MinFileSize int64
	LogDir      string // skip log directory (default: the scanned directory)
	Now         func() time.Time
}

// NewBuilder creates a Builder with the default minimum file size
func NewBuilder(logDir string) *Builder {
	return &Builder{MinFileSize: DefaultMinFileSize, LogDir: logDir, Now: time.Now}
}

// Build returns the rasters of level2Dir grouped by identity.
// Files smaller than MinFileSize are skipped and listed in "<timestamp>__prepare_odc__skipped.log".
// In incremental mode, the identities that already have a document (*.yaml) in level2Dir are removed.
func (b *Builder) Build(ctx context.Context, level2Dir string, sensor common.Sensor, incremental bool) (*FileSet, error) {
	files, err := walk(level2Dir, sensor.RasterPattern())
	if err != nil {
		return nil, fmt.Errorf("Build.%w", err)
	}

	fileSet := NewFileSet()
	var skipped []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("Build.Stat: %w", err)
		}
		if info.Size() < b.MinFileSize {
			skipped = append(skipped, fmt.Sprintf("%s - %s MB", file, strconv.FormatFloat(float64(info.Size())/1e6, 'f', -1, 64)))
			continue
		}
		id, err := common.IdentityOf(file)
		if err != nil {
			return nil, fmt.Errorf("Build.%w", err)
		}
		fileSet.Add(id, file)
	}

	if len(skipped) > 0 {
		logPath, err := b.writeSkipLog(level2Dir, skipped)
		if err != nil {
			return nil, fmt.Errorf("Build.%w", err)
		}
		log.Logger(ctx).Sugar().Infof("%d files skipped (smaller than %d bytes), see %s", len(skipped), b.MinFileSize, logPath)
	}

	if incremental {
		documents, err := walk(level2Dir, "*."+string(service.ExtensionYAML))
		if err != nil {
			return nil, fmt.Errorf("Build.%w", err)
		}
		for _, doc := range documents {
			id, err := common.IdentityOf(doc)
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("ignoring document %s: %v", doc, err)
				continue
			}
			fileSet.Remove(id)
		}
	}
	return fileSet, nil
}

func (b *Builder) writeSkipLog(level2Dir string, lines []string) (string, error) {
	dir := b.LogDir
	if dir == "" {
		dir = level2Dir
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("writeSkipLog: %w", err)
	}
	path := filepath.Join(dir, now().Format(SkipLogTimeFormat)+"__prepare_odc__skipped.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("writeSkipLog: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("writeSkipLog.Flush: %w", err)
	}
	return path, f.Close()
}

// walk returns the files of the tree whose name matches the pattern, in lexical order
func walk(root, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if ok {
			files = append(files, path)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("walk[%s]: %w", root, err)
	}
	return files, nil
}
