package domain

import (
	"fmt"
	"strings"
)

// NodeID — идентификатор узла графа: пара (step, index).
//
// Step — логическая стадия (например, "place"), Index — вариант внутри
// стадии ("0", "1", ...). Один step может иметь несколько индексов,
// которые выполняются как альтернативные ветки.
type NodeID struct {
	Step  string `json:"step" yaml:"step"`
	Index string `json:"index" yaml:"index"`
}

// String возвращает "step/index".
func (id NodeID) String() string {
	return id.Step + "/" + id.Index
}

// IsZero возвращает true для пустого идентификатора.
func (id NodeID) IsZero() bool {
	return id.Step == "" && id.Index == ""
}

// ParseNodeID парсит строку вида "step/index".
// Строка без "/" трактуется как индекс "0".
func ParseNodeID(s string) (NodeID, error) {
	step, index, found := strings.Cut(s, "/")
	if !found {
		index = "0"
	}
	if step == "" || index == "" || strings.Contains(index, "/") {
		return NodeID{}, fmt.Errorf("invalid node id %q", s)
	}
	return NodeID{Step: step, Index: index}, nil
}

// NodeKind — вид узла.
//
// Закрытый набор: обычный инструмент и два псевдо-инструмента
// (join и minimum), которые вычисляются в процессе, без запуска
// внешней программы.
type NodeKind int

const (
	// KindTool — узел, запускающий внешний инструмент через адаптер.
	KindTool NodeKind = iota

	// KindJoin — объединяет результаты всех входов, требует успеха каждого.
	KindJoin

	// KindMinimum — выбирает лучший успешный вход по взвешенной метрике.
	KindMinimum
)

// Зарезервированные имена псевдо-инструментов в описании flow.
const (
	ToolJoin    = "join"
	ToolMinimum = "minimum"
)

// KindOf определяет вид узла по имени инструмента.
func KindOf(tool string) NodeKind {
	switch tool {
	case ToolJoin:
		return KindJoin
	case ToolMinimum:
		return KindMinimum
	default:
		return KindTool
	}
}

// String возвращает строковое представление NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindJoin:
		return ToolJoin
	case KindMinimum:
		return ToolMinimum
	default:
		return "tool"
	}
}

// IsAggregator возвращает true для join и minimum.
func (k NodeKind) IsAggregator() bool {
	return k == KindJoin || k == KindMinimum
}

// NodeDef — определение узла в flow.
type NodeDef struct {
	// ID — уникальный идентификатор узла.
	ID NodeID `json:"id"`

	// Kind — вид узла (выводится из Tool).
	Kind NodeKind `json:"-"`

	// Tool — имя инструмента (адаптера) либо "join"/"minimum".
	Tool string `json:"tool"`

	// Inputs — упорядоченный список входов.
	// Порядок важен: он определяет приоритет при слиянии и tie-break.
	Inputs []NodeID `json:"inputs,omitempty"`

	// Weights — веса метрик (metric name → weight).
	// Используются minimum для выбора ветки и summary для оценки.
	Weights map[string]float64 `json:"weights,omitempty"`

	// Threads — явное число потоков; 0 означает автоматический расчёт.
	Threads int `json:"threads,omitempty"`

	// Options — параметры адаптера (exe, args, outputs, ...).
	Options map[string]any `json:"options,omitempty"`
}

// IsAggregator возвращает true, если узел вычисляется агрегатором.
func (n *NodeDef) IsAggregator() bool {
	return n.Kind.IsAggregator()
}
