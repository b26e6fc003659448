package engine

import "errors"

// Ошибки валидации FlowSpec.
var (
	// ErrEmptyFlow — flow не содержит узлов.
	ErrEmptyFlow = errors.New("flow has no nodes")

	// ErrEmptyStep — узел без имени шага.
	ErrEmptyStep = errors.New("node has empty step")

	// ErrEmptyIndex — узел без индекса.
	ErrEmptyIndex = errors.New("node has empty index")

	// ErrEmptyTool — узел без инструмента.
	ErrEmptyTool = errors.New("node has empty tool")

	// ErrDuplicateNode — несколько узлов с одинаковым (step, index).
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrMissingInput — вход ссылается на несуществующий узел.
	ErrMissingInput = errors.New("node input refers to unknown node")

	// ErrSelfDependency — узел зависит от самого себя.
	ErrSelfDependency = errors.New("node depends on itself")

	// ErrCyclicDependency — обнаружен цикл во входах.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrNoAggregatorInputs — join/minimum без входов.
	ErrNoAggregatorInputs = errors.New("aggregator node has no inputs")

	// ErrInvalidWeight — некорректный вес метрики.
	ErrInvalidWeight = errors.New("invalid metric weight")
)

// Ошибки планирования выполнения.
var (
	// ErrUnknownStep — steplist содержит шаг, которого нет в flow.
	ErrUnknownStep = errors.New("steplist names unknown step")

	// ErrUnsatisfiedInput — вход не выполняется в этом job и не имеет
	// финального статуса из предыдущих.
	ErrUnsatisfiedInput = errors.New("input is neither scheduled nor completed earlier")

	// ErrNotScheduled — обязательный узел не входит в выполняемые.
	ErrNotScheduled = errors.New("required node is not scheduled")

	// ErrUnknownTool — инструмент не зарегистрирован.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolSetup — ошибка настройки инструмента.
	ErrToolSetup = errors.New("tool setup failed")
)

// Ошибки загрузки flow-файла.
var (
	// ErrFlowFormat — неподдерживаемый формат файла.
	ErrFlowFormat = errors.New("unsupported flow file format")

	// ErrFlowDecode — файл не удалось разобрать.
	ErrFlowDecode = errors.New("flow file decode failed")
)

// ConfigError — ошибка конфигурации flow с контекстом.
//
// Возвращается до начала выполнения: если Execute вернул ConfigError,
// ни один узел не был запущен.
type ConfigError struct {
	Node    string // "step/index" узла, где обнаружена ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Node != "" {
		return "node " + e.Node + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создаёт новую ошибку конфигурации.
func NewConfigError(node, field, message string, err error) *ConfigError {
	return &ConfigError{
		Node:    node,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
