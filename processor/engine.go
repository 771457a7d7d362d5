package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/airbusgeo/ardcube/service"
)

// Container images of the processors
const (
	ForceImage   = "force"
	PyroSARImage = "pyrosar"
)

// Invocation of a tool inside a container
type Invocation struct {
	Image  string   // ForceImage, PyroSARImage
	Args   []string // command and its arguments
	Binds  []string // host directories made available at the same path in the container
	Filter LogFilter
}

func (inv Invocation) String() string {
	return inv.Image + ": " + strings.Join(inv.Args, " ")
}

// Engine runs an invocation to completion. The outputs of the tool are streamed to the logger.
type Engine interface {
	Run(ctx context.Context, inv Invocation) error
}

// NewEngine returns the engine named by the settings (singularity or docker)
func NewEngine(ctx context.Context, name, containerDir string) (Engine, error) {
	switch name {
	case "", "singularity":
		return NewSingularityEngine(containerDir), nil
	case "docker":
		e, err := NewDockerEngine(ctx, DockerConfig{ImagePrefix: containerDir})
		if err != nil {
			return nil, fmt.Errorf("NewEngine.%w", err)
		}
		return e, nil
	}
	return nil, service.ConfigError(service.ErrMissingSetting, "PROCESSING.Engine", "unknown engine "+name)
}

// invocationError wraps the error of a container run. It is fatal for the invocation.
func invocationError(ctx context.Context, inv Invocation, err error) error {
	if err == nil {
		return nil
	}
	if inv.Filter != nil {
		err = inv.Filter.WrapError(err)
	}
	err = fmt.Errorf("run[%s]: %w", inv, err)
	if ctx.Err() != nil {
		return err
	}
	return service.MakeFatal(err)
}
