// Package launch запускает внешние инструменты узлов.
//
// Launcher получает готовую Invocation (команда, аргументы, рабочая
// директория, путь лога) и возвращает код завершения процесса.
// Реализации: ExecLauncher (локальный процесс) и DockerLauncher
// (процесс в контейнере с примонтированной рабочей директорией).
package launch

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shaiso/pdflow/internal/domain"
)

// Ошибки запуска.
var (
	// ErrNoExecutable — не задан исполняемый файл.
	ErrNoExecutable = errors.New("no executable configured")

	// ErrLaunch — процесс не удалось запустить.
	ErrLaunch = errors.New("launch failed")

	// ErrTimeout — процесс превысил таймаут.
	ErrTimeout = errors.New("tool timed out")
)

// Invocation — описание одного запуска инструмента.
type Invocation struct {
	// Job — job, в котором запускается узел.
	Job string

	// Node — запускаемый узел.
	Node domain.NodeID

	// Tool — имя инструмента.
	Tool string

	// Exe — исполняемый файл.
	Exe string

	// Args — аргументы командной строки.
	Args []string

	// Env — дополнительные переменные окружения (KEY=VALUE).
	Env []string

	// WorkDir — рабочая директория узла.
	WorkDir string

	// LogPath — файл, куда пишутся stdout и stderr.
	LogPath string

	// Threads — число потоков, выделенных узлу.
	Threads int

	// Timeout — ограничение времени; 0 — без ограничения.
	Timeout time.Duration
}

// Environ возвращает переменные окружения запуска вместе с
// переменными, описывающими узел.
func (inv Invocation) Environ() []string {
	env := make([]string, 0, len(inv.Env)+4)
	env = append(env,
		"PDFLOW_JOB="+inv.Job,
		"PDFLOW_STEP="+inv.Node.Step,
		"PDFLOW_INDEX="+inv.Node.Index,
		"PDFLOW_THREADS="+strconv.Itoa(max(inv.Threads, 1)),
	)
	return append(env, inv.Env...)
}

// Launcher запускает инструмент и ждёт его завершения.
//
// Ненулевой код завершения — не ошибка Launch: ошибка возвращается
// только если процесс не удалось запустить или дождаться.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (int, error)
}

// VersionProber запрашивает у инструмента строку версии.
type VersionProber interface {
	Probe(ctx context.Context, exe string, args []string) (string, error)
}
