package crop

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLogTimeFormat is the layout of the timestamp prefixing the run logs
const RunLogTimeFormat = "20060102T150405"

// WriteRunLog writes "<timestamp>__crop.log" in logDir, one "{source} - {outcome}" line per result
func WriteRunLog(logDir string, now time.Time, results []Result) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("WriteRunLog: %w", err)
	}
	path := filepath.Join(logDir, now.Format(RunLogTimeFormat)+"__crop.log")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("WriteRunLog: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, r := range results {
		fmt.Fprintf(w, "%s - %s\n", r.Source, r.Outcome)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("WriteRunLog.Flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("WriteRunLog.Close: %w", err)
	}
	return path, nil
}
