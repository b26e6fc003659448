package domain

// NodeStatus — статус узла в рамках одного job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCESS
//	                  ↘ ERROR
//	PENDING → ERROR (short-circuit: упал один из входов)
//	PENDING → SUCCESS/ERROR (join/minimum вычисляются без RUNNING)
//
// Финальный статус устанавливается ровно один раз.
type NodeStatus string

const (
	// NodeStatusPending — узел ещё не запускался.
	NodeStatusPending NodeStatus = "PENDING"

	// NodeStatusRunning — инструмент узла выполняется.
	NodeStatusRunning NodeStatus = "RUNNING"

	// NodeStatusSuccess — узел завершён успешно.
	NodeStatusSuccess NodeStatus = "SUCCESS"

	// NodeStatusError — узел завершился с ошибкой.
	NodeStatusError NodeStatus = "ERROR"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusSuccess || s == NodeStatusError
}

// String возвращает строковое представление NodeStatus.
func (s NodeStatus) String() string {
	return string(s)
}

// ParseNodeStatus парсит строку в NodeStatus.
// Неизвестные значения трактуются как PENDING.
func ParseNodeStatus(s string) NodeStatus {
	switch s {
	case "RUNNING":
		return NodeStatusRunning
	case "SUCCESS":
		return NodeStatusSuccess
	case "ERROR":
		return NodeStatusError
	default:
		return NodeStatusPending
	}
}

// RunStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — job создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — job в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все обязательные узлы завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один обязательный узел не завершился успешно.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус — один из известных.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}
