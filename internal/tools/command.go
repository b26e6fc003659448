package tools

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Метрики, которые CommandAdapter всегда записывает после запуска.
const (
	MetricErrors   = "errors"
	MetricWarnings = "warnings"
)

// metricLine — строка лога вида "METRIC <name> <value>".
var metricLine = regexp.MustCompile(`^METRIC\s+(\S+)\s+(\S+)\s*$`)

// CommandAdapter — универсальный адаптер, настраиваемый из параметров
// узла во flow.
//
// Параметры (NodeDef.Options):
//   - exe (string): исполняемый файл (обязательно)
//   - args ([]string): аргументы, поддерживают шаблоны ({{ .Threads }})
//   - outputs ([]string): артефакты, которые инструмент создаёт в {{ .OutDir }}
//   - vswitch ([]string): аргументы запроса версии
//   - version_format (string): "trim" (по умолчанию) или "git"
//   - timeout_sec (number): ограничение времени
//   - metrics (map[string]string): имя метрики → regexp с одной группой
//   - fail_on_errors (bool): ненулевой результат при строках ERROR (по умолчанию true)
//
// PostProcess читает лог инструмента: строки "METRIC name value",
// число строк ERROR/WARNING и метрики по regexp.
type CommandAdapter struct {
	name string
}

// NewCommandAdapter создаёт адаптер для инструмента.
func NewCommandAdapter(name string) *CommandAdapter {
	return &CommandAdapter{name: name}
}

// CommandFactory — Factory для Registry.
func CommandFactory(name string) Adapter {
	return NewCommandAdapter(name)
}

// Name возвращает имя инструмента.
func (a *CommandAdapter) Name() string {
	return a.name
}

// Setup записывает исполняемый файл, потоки, артефакты и ключ версии.
func (a *CommandAdapter) Setup(cfg *NodeConfig) error {
	exe := paramString(cfg.Params, "exe", "")
	if exe == "" {
		return NewAdapterError(cfg, StageSetup, fmt.Errorf("%w: exe", ErrMissingOption))
	}
	if err := cfg.SetExe(exe); err != nil {
		return NewAdapterError(cfg, StageSetup, err)
	}

	if err := cfg.SetThreads(max(cfg.DefaultThreads, 1)); err != nil {
		return NewAdapterError(cfg, StageSetup, err)
	}

	outputs, err := paramStrings(cfg.Params, "outputs")
	if err != nil {
		return NewAdapterError(cfg, StageSetup, err)
	}
	for _, out := range outputs {
		if err := cfg.AddOutput(out); err != nil {
			return NewAdapterError(cfg, StageSetup, err)
		}
	}

	vswitch, err := paramStrings(cfg.Params, "vswitch")
	if err != nil {
		return NewAdapterError(cfg, StageSetup, err)
	}
	if len(vswitch) > 0 {
		if err := cfg.SetVersionSwitch(vswitch...); err != nil {
			return NewAdapterError(cfg, StageSetup, err)
		}
	}

	if sec := paramFloat(cfg.Params, "timeout_sec", 0); sec > 0 {
		if err := cfg.SetTimeout(time.Duration(sec * float64(time.Second))); err != nil {
			return NewAdapterError(cfg, StageSetup, err)
		}
	}

	if _, err := metricPatterns(cfg.Params); err != nil {
		return NewAdapterError(cfg, StageSetup, err)
	}

	return nil
}

// PreProcess рендерит аргументы и создаёт директорию артефактов.
func (a *CommandAdapter) PreProcess(cfg *NodeConfig) error {
	raw, err := paramStrings(cfg.Params, "args")
	if err != nil {
		return NewAdapterError(cfg, StagePreProcess, err)
	}

	args, err := RenderArgs(raw, NewTemplateContext(cfg))
	if err != nil {
		return NewAdapterError(cfg, StagePreProcess, err)
	}

	cfg.ClearOptions()
	if err := cfg.AddOption(args...); err != nil {
		return NewAdapterError(cfg, StagePreProcess, err)
	}

	if err := os.MkdirAll(cfg.OutputPath(""), 0o755); err != nil {
		return NewAdapterError(cfg, StagePreProcess, err)
	}
	return nil
}

// PostProcess извлекает метрики из лога инструмента.
func (a *CommandAdapter) PostProcess(cfg *NodeConfig) (int, error) {
	patterns, err := metricPatterns(cfg.Params)
	if err != nil {
		return 1, NewAdapterError(cfg, StagePostProcess, err)
	}

	scan, err := ScanLog(cfg.LogPath(), patterns)
	if err != nil {
		return 1, NewAdapterError(cfg, StagePostProcess, err)
	}

	for name, value := range scan.Metrics {
		if err := cfg.SetMetric(name, value); err != nil {
			return 1, NewAdapterError(cfg, StagePostProcess, err)
		}
	}
	if err := cfg.SetMetric(MetricErrors, float64(len(scan.Errors))); err != nil {
		return 1, NewAdapterError(cfg, StagePostProcess, err)
	}
	if err := cfg.SetMetric(MetricWarnings, float64(len(scan.Warnings))); err != nil {
		return 1, NewAdapterError(cfg, StagePostProcess, err)
	}

	for _, w := range scan.Warnings {
		cfg.Warnf("%s", w)
	}
	for _, name := range scan.NonFinite {
		cfg.Warnf("metric %s is not a finite number", name)
	}

	if len(scan.Errors) > 0 && paramBool(cfg.Params, "fail_on_errors", true) {
		return 1, nil
	}
	return 0, nil
}

// record разбирает значение метрики. Нечисловые значения пропускаются,
// NaN и Inf попадают в NonFinite.
func (s *LogScan) record(name, raw string) {
	v, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil:
	case math.IsNaN(v) || math.IsInf(v, 0):
		if !slices.Contains(s.NonFinite, name) {
			s.NonFinite = append(s.NonFinite, name)
		}
	default:
		s.Metrics[name] = v
	}
}

// ParseVersion обрезает пробелы и перевод строки в выводе версии.
// Формат version_format узла учитывает ParseVersionFor.
func (a *CommandAdapter) ParseVersion(raw string) string {
	return TrimVersion(raw)
}

// VersionParser — адаптер, чей формат версии зависит от параметров узла.
type VersionParser interface {
	ParseVersionFor(cfg *NodeConfig, raw string) string
}

// ParseVersionFor нормализует версию согласно version_format узла.
func (a *CommandAdapter) ParseVersionFor(cfg *NodeConfig, raw string) string {
	if paramString(cfg.Params, "version_format", "trim") == "git" {
		return ParseGitDescribe(raw)
	}
	return a.ParseVersion(raw)
}

// LogScan — результат разбора лога инструмента.
type LogScan struct {
	Metrics  map[string]float64
	Errors   []string
	Warnings []string

	// NonFinite — метрики со значением NaN или Inf. В Metrics они не попадают.
	NonFinite []string
}

// ScanLog читает лог и собирает метрики, ошибки и предупреждения.
//
// Для метрики по regexp берётся последнее совпадение в логе.
func ScanLog(path string, patterns map[string]*regexp.Regexp) (*LogScan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	scan := &LogScan{Metrics: make(map[string]float64)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case hasLevel(line, "ERROR"):
			scan.Errors = append(scan.Errors, line)
		case hasLevel(line, "WARNING"):
			scan.Warnings = append(scan.Warnings, line)
		}

		if m := metricLine.FindStringSubmatch(line); m != nil {
			scan.record(m[1], m[2])
		}

		for name, re := range patterns {
			if m := re.FindStringSubmatch(line); len(m) > 1 {
				scan.record(name, m[1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	return scan, nil
}

// hasLevel проверяет префикс уровня: "ERROR", "[ERROR ...]", "Error:".
func hasLevel(line, level string) bool {
	upper := strings.ToUpper(line)
	return strings.HasPrefix(upper, level+":") ||
		strings.HasPrefix(upper, level+" ") ||
		strings.HasPrefix(upper, "["+level)
}

func metricPatterns(params map[string]any) (map[string]*regexp.Regexp, error) {
	raw, ok := params["metrics"]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: metrics must be a map", ErrInvalidOption)
	}
	patterns := make(map[string]*regexp.Regexp, len(m))
	for name, v := range m {
		expr, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: metric %s pattern must be a string", ErrInvalidOption, name)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: metric %s: %v", ErrInvalidOption, name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: metric %s pattern needs a capture group", ErrInvalidOption, name)
		}
		patterns[name] = re
	}
	return patterns, nil
}

// paramString извлекает строковый параметр.
func paramString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// paramFloat извлекает числовой параметр.
func paramFloat(m map[string]any, key string, defaultVal float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return defaultVal
}

// paramBool извлекает логический параметр.
func paramBool(m map[string]any, key string, defaultVal bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return defaultVal
}

// paramStrings извлекает список строк; скаляр даёт список из одного элемента.
func paramStrings(m map[string]any, key string) ([]string, error) {
	val, ok := m[key]
	if !ok || val == nil {
		return nil, nil
	}
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case int, float64, bool:
				out = append(out, fmt.Sprint(s))
			default:
				return nil, fmt.Errorf("%w: %s must be a list of strings", ErrInvalidOption, key)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings", ErrInvalidOption, key)
	}
}
