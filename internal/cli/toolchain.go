package cli

import (
	"io"
	"log/slog"

	"github.com/shaiso/pdflow/internal/launch"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/orchestrator"
	"github.com/shaiso/pdflow/internal/telemetry"
	"github.com/shaiso/pdflow/internal/tools"
)

// Toolchain — окружение запуска инструментов: где и как выполняются
// узлы flow. Используется командой run и сервером расписаний.
type Toolchain struct {
	// WorkDir — корень рабочих директорий узлов.
	WorkDir string

	// MaxParallel, Threads — ограничения планировщика (0 — по числу CPU).
	MaxParallel int
	Threads     int

	// DockerImage — если задан, инструменты запускаются в контейнере.
	DockerImage string

	// Console — куда дублировать вывод инструментов; nil — тихий режим.
	Console io.Writer

	Recorder orchestrator.Recorder
	Events   orchestrator.EventSink
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	launcher launch.Launcher
	prober   launch.VersionProber
	closer   io.Closer
}

// Open создаёт launcher. Для Docker подключается к демону.
func (t *Toolchain) Open() error {
	if t.Logger == nil {
		t.Logger = slog.Default()
	}

	if t.DockerImage != "" {
		dl, err := launch.NewDockerLauncher(launch.DockerConfig{
			Image:   t.DockerImage,
			Console: t.Console,
			Logger:  t.Logger,
		})
		if err != nil {
			return err
		}
		t.launcher = dl
		t.closer = dl
		return nil
	}

	el := launch.NewExecLauncher(launch.ExecConfig{
		Console: t.Console,
		Logger:  t.Logger,
	})
	t.launcher = el
	t.prober = el
	return nil
}

// Close освобождает ресурсы launcher.
func (t *Toolchain) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Registry возвращает реестр адаптеров: инструменты без своего адаптера
// настраиваются параметрами узла (CommandAdapter).
func (t *Toolchain) Registry() *tools.Registry {
	return tools.NewRegistry(tools.CommandFactory)
}

// Prober возвращает запрос версии или nil, если launcher его не поддерживает.
func (t *Toolchain) Prober() launch.VersionProber {
	return t.prober
}

// NewController создаёт Controller поверх manifest.
// manifestPath может быть пустым: тогда manifest не сохраняется.
func (t *Toolchain) NewController(store *manifest.Store, manifestPath string) (*orchestrator.Controller, error) {
	if t.launcher == nil {
		if err := t.Open(); err != nil {
			return nil, err
		}
	}

	return orchestrator.New(orchestrator.Config{
		Store:        store,
		Registry:     t.Registry(),
		Launcher:     t.launcher,
		Prober:       t.prober,
		WorkDir:      t.WorkDir,
		ManifestPath: manifestPath,
		MaxParallel:  t.MaxParallel,
		ThreadBudget: t.Threads,
		Recorder:     t.Recorder,
		Events:       t.Events,
		Metrics:      t.Metrics,
		Logger:       t.Logger,
	})
}
