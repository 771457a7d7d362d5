package processor

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/ardcube/service/log"
	"go.uber.org/zap/zapcore"
)

// SingularityEngine runs the tools in Singularity images (<ImageDir>/<image>.sif)
type SingularityEngine struct {
	Binary   string
	ImageDir string
}

// NewSingularityEngine creates an engine using the images of imageDir
func NewSingularityEngine(imageDir string) *SingularityEngine {
	return &SingularityEngine{Binary: "singularity", ImageDir: imageDir}
}

// Command returns the command running the invocation
func (e *SingularityEngine) Command(ctx context.Context, inv Invocation) *exec.Cmd {
	args := []string{"exec", "--cleanenv"}
	if len(inv.Binds) > 0 {
		args = append(args, "-B", strings.Join(inv.Binds, ","))
	}
	args = append(args, filepath.Join(e.ImageDir, inv.Image+".sif"))
	args = append(args, inv.Args...)
	return exec.CommandContext(ctx, e.Binary, args...)
}

// Run implements Engine
func (e *SingularityEngine) Run(ctx context.Context, inv Invocation) error {
	ctx = log.With(ctx, "image", inv.Image)
	log.Logger(ctx).Sugar().Infof("running %s", inv)

	opts := []log.ExecOption{log.StdoutLevel(zapcore.InfoLevel)}
	if inv.Filter != nil {
		opts = append(opts, log.StdoutFilter(inv.Filter), log.StderrFilter(inv.Filter))
	}
	return invocationError(ctx, inv, log.Exec(ctx, e.Command(ctx, inv), opts...))
}
