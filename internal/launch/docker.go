package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerConfig — конфигурация DockerLauncher.
type DockerConfig struct {
	// Image — образ с инструментами (например, "efabless/openlane:latest").
	Image string

	// APIVersion — версия Docker API (по умолчанию "1.44").
	APIVersion string

	// Console — куда дублировать вывод инструмента; nil — только в лог.
	Console io.Writer

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// DockerLauncher запускает инструмент внутри контейнера.
//
// Рабочая директория узла монтируется в контейнер по тому же пути,
// поэтому пути артефактов в manifest остаются валидными на хосте.
type DockerLauncher struct {
	cli     *client.Client
	image   string
	console io.Writer
	logger  *slog.Logger
}

// NewDockerLauncher подключается к Docker из переменных окружения.
func NewDockerLauncher(cfg DockerConfig) (*DockerLauncher, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("%w: docker image is required", ErrLaunch)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1.44"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithVersion(cfg.APIVersion))
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	return &DockerLauncher{
		cli:     cli,
		image:   cfg.Image,
		console: cfg.Console,
		logger:  cfg.Logger,
	}, nil
}

// Close закрывает клиент Docker.
func (l *DockerLauncher) Close() error {
	return l.cli.Close()
}

// Launch создаёт контейнер, ждёт его завершения и пишет вывод в лог узла.
func (l *DockerLauncher) Launch(ctx context.Context, inv Invocation) (int, error) {
	if inv.Exe == "" {
		return -1, fmt.Errorf("%w: %s", ErrNoExecutable, inv.Node)
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	logFile, err := openLog(inv.LogPath)
	if err != nil {
		return -1, err
	}
	defer logFile.Close()

	cfg, hostCfg := containerSpec(l.image, inv)

	resp, err := l.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return -1, fmt.Errorf("%w: create container: %v", ErrLaunch, err)
	}
	containerID := resp.ID
	defer func() {
		// Контейнер удаляется даже после отмены ctx.
		rmErr := l.cli.ContainerRemove(context.WithoutCancel(ctx), containerID,
			types.ContainerRemoveOptions{Force: true})
		if rmErr != nil {
			l.logger.Warn("failed to remove container", "container", shortID(containerID), "error", rmErr)
		}
	}()

	l.logger.Debug("container created",
		"node", inv.Node.String(),
		"container", shortID(containerID),
		"image", l.image,
	)

	if err := l.cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return -1, fmt.Errorf("%w: start container: %v", ErrLaunch, err)
	}

	var exitCode int
	statusCh, errCh := l.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return -1, fmt.Errorf("%w: %s after %s", ErrTimeout, inv.Node, inv.Timeout)
			}
			return -1, fmt.Errorf("%w: wait container: %v", ErrLaunch, err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	outReader, err := l.cli.ContainerLogs(ctx, containerID,
		types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return -1, fmt.Errorf("%w: container logs: %v", ErrLaunch, err)
	}
	defer outReader.Close()

	var out io.Writer = logFile
	if l.console != nil {
		out = io.MultiWriter(logFile, l.console)
	}
	if _, err := stdcopy.StdCopy(out, out, outReader); err != nil {
		return -1, fmt.Errorf("%w: copy container logs: %v", ErrLaunch, err)
	}

	return exitCode, nil
}

// containerSpec строит конфигурацию контейнера для запуска.
func containerSpec(image string, inv Invocation) (*container.Config, *container.HostConfig) {
	workDir, _ := filepath.Abs(inv.WorkDir)

	cfg := &container.Config{
		Image:      image,
		Cmd:        append([]string{inv.Exe}, inv.Args...),
		Env:        inv.Environ(),
		WorkingDir: workDir,
		Tty:        false,
	}
	hostCfg := &container.HostConfig{
		Binds: []string{workDir + ":" + workDir},
	}
	if inv.Threads > 0 {
		hostCfg.NanoCPUs = int64(inv.Threads) * 1e9
	}
	return cfg, hostCfg
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
