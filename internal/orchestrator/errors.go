package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/pdflow/internal/domain"
)

// Ошибки выполнения.
var (
	// ErrRunFatal — хотя бы один обязательный узел не завершился успешно.
	ErrRunFatal = errors.New("run failed")

	// ErrInputFailed — узел не запущен: упал один из входов.
	ErrInputFailed = errors.New("input failed")

	// ErrToolExit — инструмент завершился с ненулевым кодом.
	ErrToolExit = errors.New("tool exited with non-zero code")

	// ErrPostProcess — post_process вернул ненулевой код.
	ErrPostProcess = errors.New("post-process reported failure")

	// ErrMissingOutput — инструмент не создал объявленный артефакт.
	ErrMissingOutput = errors.New("declared output missing")

	// ErrAggregate — join/minimum не смог выбрать результат.
	ErrAggregate = errors.New("aggregation failed")
)

// Стадии выполнения узла для NodeError.
const (
	StageShortCircuit = "short_circuit"
	StageOutputs      = "outputs"
	StageAggregate    = "aggregate"
)

// NodeError — причина статуса ERROR узла.
//
// NodeError не выходит за пределы Scheduler: она записывается в
// историю и в NodeRun.Error, а job продолжается.
type NodeError struct {
	Node  domain.NodeID // узел
	Tool  string        // инструмент
	Stage string        // стадия, на которой произошла ошибка
	Err   error         // базовая ошибка
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s) failed at %s: %v", e.Node, e.Tool, e.Stage, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// RunFatalError — job завершился без успеха обязательных узлов.
type RunFatalError struct {
	// JobID — имя job в истории manifest.
	JobID string

	// Failed — обязательные узлы, не достигшие SUCCESS.
	Failed []domain.NodeID

	// Statuses — итоговая таблица статусов выполняемых узлов.
	Statuses map[domain.NodeID]domain.NodeStatus

	// Summary — сводка по выполняемым узлам для отчёта.
	Summary []SummaryRow

	// Err — причина прерывания (например, отмена контекста).
	Err error
}

// Error реализует интерфейс error.
func (e *RunFatalError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, id := range e.Failed {
		names = append(names, id.String())
	}
	msg := "job " + e.JobID + " failed"
	if len(names) > 0 {
		msg += ": required nodes not successful: " + strings.Join(names, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap позволяет проверять и ErrRunFatal, и причину прерывания.
func (e *RunFatalError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRunFatal, e.Err}
	}
	return []error{ErrRunFatal}
}
