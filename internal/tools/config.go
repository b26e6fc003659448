package tools

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/launch"
	"github.com/shaiso/pdflow/internal/manifest"
)

// Поля настроек инструмента в manifest: tool/<tool>/<step>/<index>/<field>.
const (
	FieldExe     = "exe"
	FieldOption  = "option"
	FieldThreads = "threads"
	FieldOutput  = "output"
	FieldVSwitch = "vswitch"
	FieldVersion = "version"
	FieldTimeout = "timeout"
)

// NodeConfig — представление manifest, ограниченное одним узлом.
type NodeConfig struct {
	// Job — текущий job.
	Job string

	// Node — узел.
	Node domain.NodeID

	// Tool — имя инструмента.
	Tool string

	// Inputs — входы узла в порядке объявления.
	Inputs []domain.NodeID

	// Params — параметры узла из flow.
	Params map[string]any

	// WorkDir — рабочая директория узла: <root>/<job>/<step>/<index>.
	WorkDir string

	// Store — manifest.
	Store *manifest.Store

	// DefaultThreads — число потоков по умолчанию для узла.
	DefaultThreads int

	// Logger — логгер узла.
	Logger *slog.Logger

	mu       sync.Mutex
	warnings []string
}

// NewNodeConfig создаёт NodeConfig для узла.
func NewNodeConfig(store *manifest.Store, job string, def *domain.NodeDef, root string, threads int) *NodeConfig {
	return &NodeConfig{
		Job:            job,
		Node:           def.ID,
		Tool:           def.Tool,
		Inputs:         def.Inputs,
		Params:         def.Options,
		WorkDir:        filepath.Join(root, job, def.ID.Step, def.ID.Index),
		Store:          store,
		DefaultThreads: threads,
		Logger:         slog.Default().With("node", def.ID.String(), "tool", def.Tool),
	}
}

func (c *NodeConfig) key(field string) manifest.Key {
	return manifest.ToolKey(c.Tool, c.Node, field)
}

// SetExe задаёт исполняемый файл.
func (c *NodeConfig) SetExe(exe string) error {
	return c.Store.SetToolValue(c.Tool, c.Node, FieldExe, exe)
}

// Exe возвращает исполняемый файл.
func (c *NodeConfig) Exe() string {
	v, _ := c.Store.GetString(c.key(FieldExe))
	return v
}

// AddOption добавляет аргументы командной строки.
func (c *NodeConfig) AddOption(opts ...string) error {
	for _, opt := range opts {
		if err := c.Store.AddToolValue(c.Tool, c.Node, FieldOption, opt); err != nil {
			return err
		}
	}
	return nil
}

// ClearOptions удаляет аргументы командной строки.
func (c *NodeConfig) ClearOptions() {
	c.Store.Delete(c.key(FieldOption))
}

// Args возвращает аргументы командной строки.
func (c *NodeConfig) Args() []string {
	return c.Store.GetStrings(c.key(FieldOption))
}

// SetThreads задаёт число потоков.
func (c *NodeConfig) SetThreads(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalidOption, n)
	}
	return c.Store.SetToolValue(c.Tool, c.Node, FieldThreads, n)
}

// Threads возвращает число потоков.
func (c *NodeConfig) Threads() int {
	if v, ok := c.Store.GetFloat(c.key(FieldThreads)); ok && v >= 1 {
		return int(v)
	}
	return max(c.DefaultThreads, 1)
}

// SetTimeout задаёт ограничение времени работы инструмента.
func (c *NodeConfig) SetTimeout(d time.Duration) error {
	return c.Store.SetToolValue(c.Tool, c.Node, FieldTimeout, d.Seconds())
}

// Timeout возвращает ограничение времени; 0 — без ограничения.
func (c *NodeConfig) Timeout() time.Duration {
	v, _ := c.Store.GetFloat(c.key(FieldTimeout))
	return time.Duration(v * float64(time.Second))
}

// AddOutput объявляет ожидаемый артефакт узла.
func (c *NodeConfig) AddOutput(name string) error {
	for _, existing := range c.DeclaredOutputs() {
		if existing == name {
			return nil
		}
	}
	return c.Store.AddToolValue(c.Tool, c.Node, FieldOutput, name)
}

// DeclaredOutputs возвращает объявленные артефакты.
func (c *NodeConfig) DeclaredOutputs() []string {
	return c.Store.GetStrings(c.key(FieldOutput))
}

// OutputPath возвращает путь артефакта в директории узла.
func (c *NodeConfig) OutputPath(name string) string {
	return filepath.Join(c.WorkDir, "outputs", name)
}

// SetVersionSwitch задаёт аргументы запроса версии.
func (c *NodeConfig) SetVersionSwitch(args ...string) error {
	c.Store.Delete(c.key(FieldVSwitch))
	for _, arg := range args {
		if err := c.Store.AddToolValue(c.Tool, c.Node, FieldVSwitch, arg); err != nil {
			return err
		}
	}
	return nil
}

// VersionSwitch возвращает аргументы запроса версии.
func (c *NodeConfig) VersionSwitch() []string {
	return c.Store.GetStrings(c.key(FieldVSwitch))
}

// SetVersion записывает нормализованную версию инструмента.
func (c *NodeConfig) SetVersion(version string) error {
	return c.Store.SetToolValue(c.Tool, c.Node, FieldVersion, version)
}

// Version возвращает записанную версию инструмента.
func (c *NodeConfig) Version() string {
	v, _ := c.Store.GetString(c.key(FieldVersion))
	return v
}

// SetMetric записывает метрику узла.
func (c *NodeConfig) SetMetric(name string, value float64) error {
	return c.Store.SetMetric(c.Node, name, value)
}

// InputOutputs возвращает артефакты входа узла.
func (c *NodeConfig) InputOutputs(id domain.NodeID) map[string]string {
	return c.Store.Outputs(id)
}

// LogPath возвращает путь лога инструмента: <workdir>/<step>.log.
func (c *NodeConfig) LogPath() string {
	return filepath.Join(c.WorkDir, c.Node.Step+".log")
}

// Warnf регистрирует предупреждение адаптера.
func (c *NodeConfig) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()

	c.logger().Warn(msg)
}

// Warnings возвращает зарегистрированные предупреждения.
func (c *NodeConfig) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// CheckWarnings применяет политику предупреждений: в строгом режиме
// (relax=false) любое предупреждение превращается в AdapterError.
func (c *NodeConfig) CheckWarnings(relax bool) error {
	warnings := c.Warnings()
	if relax || len(warnings) == 0 {
		return nil
	}
	return NewAdapterError(c, StagePostProcess,
		fmt.Errorf("%w: %d warning(s), first: %s", ErrWarnings, len(warnings), warnings[0]))
}

// Invocation строит описание запуска инструмента.
func (c *NodeConfig) Invocation() launch.Invocation {
	return launch.Invocation{
		Job:     c.Job,
		Node:    c.Node,
		Tool:    c.Tool,
		Exe:     c.Exe(),
		Args:    c.Args(),
		WorkDir: c.WorkDir,
		LogPath: c.LogPath(),
		Threads: c.Threads(),
		Timeout: c.Timeout(),
	}
}

func (c *NodeConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
