package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ExecConfig — конфигурация ExecLauncher.
type ExecConfig struct {
	// Console — куда дублировать вывод инструмента; nil — только в лог.
	Console io.Writer

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// ExecLauncher запускает инструмент как локальный процесс.
type ExecLauncher struct {
	console io.Writer
	logger  *slog.Logger
}

// NewExecLauncher создаёт ExecLauncher.
func NewExecLauncher(cfg ExecConfig) *ExecLauncher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ExecLauncher{
		console: cfg.Console,
		logger:  cfg.Logger,
	}
}

// Launch запускает процесс и возвращает его код завершения.
func (l *ExecLauncher) Launch(ctx context.Context, inv Invocation) (int, error) {
	if inv.Exe == "" {
		return -1, fmt.Errorf("%w: %s", ErrNoExecutable, inv.Node)
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	if err := os.MkdirAll(inv.WorkDir, 0o755); err != nil {
		return -1, fmt.Errorf("%w: create workdir: %v", ErrLaunch, err)
	}

	logFile, err := openLog(inv.LogPath)
	if err != nil {
		return -1, err
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if l.console != nil {
		out = io.MultiWriter(logFile, l.console)
	}

	cmd := exec.CommandContext(ctx, inv.Exe, inv.Args...)
	cmd.Dir = inv.WorkDir
	cmd.Env = append(os.Environ(), inv.Environ()...)
	cmd.Stdout = out
	cmd.Stderr = out

	l.logger.Debug("launching tool",
		"node", inv.Node.String(),
		"exe", inv.Exe,
		"args", inv.Args,
		"threads", inv.Threads,
	)

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return -1, fmt.Errorf("%w: %s after %s", ErrTimeout, inv.Node, inv.Timeout)
		}
		return -1, fmt.Errorf("%w: %v", ErrLaunch, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
}

// Probe запускает инструмент с ключом версии и возвращает вывод.
func (l *ExecLauncher) Probe(ctx context.Context, exe string, args []string) (string, error) {
	if exe == "" {
		return "", ErrNoExecutable
	}
	out, err := exec.CommandContext(ctx, exe, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: version probe %s: %v", ErrLaunch, exe, err)
	}
	return string(out), nil
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty log path", ErrLaunch)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create log dir: %v", ErrLaunch, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create log: %v", ErrLaunch, err)
	}
	return f, nil
}
