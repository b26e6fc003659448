package tools

import (
	"errors"
	"fmt"

	"github.com/shaiso/pdflow/internal/domain"
)

var (
	// ErrUnknownTool — адаптер не зарегистрирован.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingOption — у узла нет обязательного параметра адаптера.
	ErrMissingOption = errors.New("missing tool option")

	// ErrInvalidOption — параметр адаптера имеет неверный тип.
	ErrInvalidOption = errors.New("invalid tool option")

	// ErrWarnings — адаптер сообщил предупреждения в строгом режиме.
	ErrWarnings = errors.New("tool reported warnings")

	// ErrTemplateParse — ошибка парсинга шаблона аргумента.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrTemplateRender — ошибка рендеринга шаблона аргумента.
	ErrTemplateRender = errors.New("template render failed")
)

// Стадии протокола адаптера.
const (
	StageSetup       = "setup"
	StagePreProcess  = "pre_process"
	StageRun         = "run"
	StagePostProcess = "post_process"
)

// AdapterError — ошибка адаптера на одной из стадий.
//
// Внутри узла AdapterError превращается в статус ERROR; на стадии
// setup — в ошибку конфигурации всего job.
type AdapterError struct {
	Tool  string        // имя инструмента
	Node  domain.NodeID // узел
	Stage string        // стадия протокола
	Err   error         // базовая ошибка
}

// Error реализует интерфейс error.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Tool, e.Node, e.Stage, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError создаёт ошибку адаптера.
func NewAdapterError(cfg *NodeConfig, stage string, err error) *AdapterError {
	return &AdapterError{
		Tool:  cfg.Tool,
		Node:  cfg.Node,
		Stage: stage,
		Err:   err,
	}
}
