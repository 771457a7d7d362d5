package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/ardcube/service/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

// DockerConfig configures the docker engine
type DockerConfig struct {
	ImagePrefix      string // e.g. "davidfrantz/" => davidfrantz/force
	RegistryServer   string
	RegistryUserName string
	RegistryPassword string
}

// DockerEngine runs the tools in docker containers, as the current user
type DockerEngine struct {
	Client      *client.Client
	ImagePrefix string
	AuthConfig  string //encode base64
}

// NewDockerEngine connects to the docker daemon (configured from the environment)
func NewDockerEngine(ctx context.Context, config DockerConfig) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create new docker client: %w", err)
	}

	var encodedAuthLogin string
	if config.RegistryUserName != "" && config.RegistryPassword != "" && config.RegistryServer != "" {
		log.Logger(ctx).Info("register to container registry...")
		encodedAuthLogin, err = registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      config.RegistryUserName,
			Password:      config.RegistryPassword,
			ServerAddress: config.RegistryServer,
		})
		if err != nil {
			return nil, fmt.Errorf("NewDockerEngine: %w", err)
		}
	}

	d := DockerEngine{
		Client:      cli,
		ImagePrefix: config.ImagePrefix,
		AuthConfig:  encodedAuthLogin,
	}
	if err := d.Ping(ctx, time.Minute); err != nil {
		return nil, fmt.Errorf("NewDockerEngine: %w", err)
	}
	return &d, nil
}

// Ping waits for the docker daemon
func (d *DockerEngine) Ping(ctx context.Context, timeout time.Duration) error {
	var err error
	ctx, cnl := context.WithTimeout(ctx, timeout)
	defer cnl()
	for {
		if _, err = d.Client.Ping(ctx); err == nil {
			return nil
		}
		log.Logger(ctx).Info("Waiting for docker daemon...")
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to find docker daemon: %w", err)
		case <-time.After(5 * time.Second):
		}
	}
}

// ImageRef returns the reference of the image of the tool
func (d *DockerEngine) ImageRef(name string) string {
	return d.ImagePrefix + name
}

// Mounts returns the bind mounts of the invocation
func Mounts(binds []string) []mount.Mount {
	var mounts []mount.Mount
	for _, b := range binds {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: b,
			Target: b,
		})
	}
	return mounts
}

// Run implements Engine
func (d *DockerEngine) Run(ctx context.Context, inv Invocation) error {
	ref := d.ImageRef(inv.Image)
	ctx = log.With(ctx, "image", ref)
	log.Logger(ctx).Sugar().Infof("running %s", inv)

	imageInfo, err := d.localImageInfo(ctx, ref)
	if err != nil {
		log.Logger(ctx).Info("pulling image " + ref)
		if imageInfo, err = d.pullImage(ctx, ref); err != nil {
			return fmt.Errorf("Run: %w", err)
		}
	}

	containerConfig := &container.Config{
		Image:        imageInfo.ID,
		Cmd:          inv.Args,
		AttachStdout: true,
		AttachStderr: true,
		User:         fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}
	hostConfig := &container.HostConfig{
		Mounts: Mounts(inv.Binds),
	}

	created, err := d.Client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "ardcube-"+inv.Image+"-"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to create %s container: %w", ref, err)
	}
	defer func() {
		// the run context may be cancelled
		cctx := context.Background()
		if err := d.Client.ContainerStop(cctx, created.ID, container.StopOptions{}); err != nil {
			log.Logger(ctx).Sugar().Warnf("failed to stop container: %s", created.ID)
		}
		if err := d.Client.ContainerRemove(cctx, created.ID, container.RemoveOptions{}); err != nil {
			log.Logger(ctx).Sugar().Warnf("failed to remove container: %s", created.ID)
		}
	}()

	return invocationError(ctx, inv, d.runContainer(ctx, created.ID, inv.Filter))
}

func (d *DockerEngine) pullImage(ctx context.Context, ref string) (image.Summary, error) {
	rc, err := d.Client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: d.AuthConfig})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			err = service.MakeTemporary(err)
		}
		return image.Summary{}, fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()
	if b, err := io.ReadAll(rc); err != nil {
		log.Logger(ctx).Sugar().Errorf("failed to read image pull information: %v", err)
	} else {
		log.Logger(ctx).Sugar().Debug(string(b))
	}
	return d.localImageInfo(ctx, ref)
}

func (d *DockerEngine) localImageInfo(ctx context.Context, ref string) (image.Summary, error) {
	images, err := d.Client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return image.Summary{}, service.MakeTemporary(fmt.Errorf("failed to list image %s: %w", ref, err))
	}
	if len(images) < 1 {
		return image.Summary{}, fmt.Errorf("not found: %s", ref)
	}
	return images[0], nil
}

func (d *DockerEngine) runContainer(ctx context.Context, containerID string, filter LogFilter) error {
	if err := d.Client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	logs, err := d.Client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to retrieve logs: %w", err)
	}
	stdout := log.NewLineWriter(ctx, zapcore.InfoLevel, filter)
	stderr := log.NewLineWriter(ctx, zapcore.WarnLevel, filter)
	_, err = stdcopy.StdCopy(stdout, stderr, logs)
	logs.Close()
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("failed to read logs: %v", err)
	}

	statusCh, errCh := d.Client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case exit := <-statusCh:
		if exit.StatusCode != 0 {
			return fmt.Errorf("exit status %d", exit.StatusCode)
		}
	}
	return nil
}
