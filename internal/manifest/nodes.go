package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/pdflow/internal/domain"
)

// Корневые пространства имён manifest.
const (
	NSMetric  = "metric"
	NSOutput  = "output"
	NSSelect  = "select"
	NSTool    = "tool"
	NSHistory = "history"
	NSJobs    = "jobs"
)

// MetricKey возвращает ключ метрики узла.
func MetricKey(id domain.NodeID, name string) Key {
	return K(NSMetric, id.Step, id.Index, name)
}

// OutputKey возвращает ключ артефакта узла.
func OutputKey(id domain.NodeID, name string) Key {
	return K(NSOutput, id.Step, id.Index, name)
}

// ToolKey возвращает ключ настройки инструмента для узла.
func ToolKey(tool string, id domain.NodeID, field string) Key {
	return K(NSTool, tool, id.Step, id.Index, field)
}

// StatusKey возвращает ключ статуса узла в истории job.
func StatusKey(job string, id domain.NodeID) Key {
	return K(NSHistory, job, "flowstatus", id.Step, id.Index, "status")
}

// SetMetric записывает метрику узла.
func (s *Store) SetMetric(id domain.NodeID, name string, value float64) error {
	return s.Set(MetricKey(id, name), value)
}

// Metric возвращает метрику узла.
func (s *Store) Metric(id domain.NodeID, name string) (float64, bool) {
	return s.GetFloat(MetricKey(id, name))
}

// Metrics возвращает все числовые метрики узла.
func (s *Store) Metrics(id domain.NodeID) map[string]float64 {
	base := K(NSMetric, id.Step, id.Index)
	out := make(map[string]float64)
	for _, name := range s.Children(base) {
		if v, ok := s.GetFloat(base.Append(name)); ok {
			out[name] = v
		}
	}
	return out
}

// SetOutput записывает путь артефакта узла.
func (s *Store) SetOutput(id domain.NodeID, name, path string) error {
	return s.Set(OutputKey(id, name), path)
}

// Outputs возвращает артефакты узла (имя → путь).
func (s *Store) Outputs(id domain.NodeID) map[string]string {
	base := K(NSOutput, id.Step, id.Index)
	out := make(map[string]string)
	for _, name := range s.Children(base) {
		if v, ok := s.GetString(base.Append(name)); ok {
			out[name] = v
		}
	}
	return out
}

// SetSelected записывает вход, выбранный minimum-узлом.
func (s *Store) SetSelected(id, selected domain.NodeID) error {
	return s.Set(K(NSSelect, id.Step, id.Index), selected.String())
}

// Selected возвращает вход, выбранный minimum-узлом.
func (s *Store) Selected(id domain.NodeID) (domain.NodeID, bool) {
	v, ok := s.GetString(K(NSSelect, id.Step, id.Index))
	if !ok {
		return domain.NodeID{}, false
	}
	sel, err := domain.ParseNodeID(v)
	if err != nil {
		return domain.NodeID{}, false
	}
	return sel, true
}

// ClearNode удаляет результаты узла (артефакты, метрики, выбор)
// перед его повторным выполнением.
func (s *Store) ClearNode(id domain.NodeID) {
	for _, ns := range []string{NSMetric, NSOutput, NSSelect} {
		s.Delete(K(ns, id.Step, id.Index))
	}
}

// SetNodeStatus записывает статус узла в истории job.
func (s *Store) SetNodeStatus(job string, id domain.NodeID, status domain.NodeStatus) error {
	return s.Set(StatusKey(job, id), string(status))
}

// NodeStatus возвращает статус узла в истории job.
func (s *Store) NodeStatus(job string, id domain.NodeID) (domain.NodeStatus, bool) {
	v, ok := s.GetString(StatusKey(job, id))
	if !ok {
		return "", false
	}
	return domain.ParseNodeStatus(v), true
}

// NodeStatuses возвращает статусы всех узлов job.
func (s *Store) NodeStatuses(job string) map[domain.NodeID]domain.NodeStatus {
	base := K(NSHistory, job, "flowstatus")
	out := make(map[domain.NodeID]domain.NodeStatus)
	for _, step := range s.Children(base) {
		for _, index := range s.Children(base.Append(step)) {
			id := domain.NodeID{Step: step, Index: index}
			if st, ok := s.NodeStatus(job, id); ok {
				out[id] = st
			}
		}
	}
	return out
}

// SetRunStatus записывает статус job.
func (s *Store) SetRunStatus(job string, status domain.RunStatus) error {
	return s.Set(K(NSHistory, job, "status"), string(status))
}

// RunStatus возвращает статус job.
func (s *Store) RunStatus(job string) (domain.RunStatus, bool) {
	v, ok := s.GetString(K(NSHistory, job, "status"))
	return domain.RunStatus(v), ok
}

// Jobs возвращает job в порядке создания.
func (s *Store) Jobs() []string {
	return s.GetStrings(K(NSJobs))
}

// AddJob регистрирует job, если он ещё не зарегистрирован.
func (s *Store) AddJob(job string) error {
	for _, existing := range s.Jobs() {
		if existing == job {
			return nil
		}
	}
	return s.Add(K(NSJobs), job)
}

// NextJobID возвращает первое свободное имя вида "jobN".
func (s *Store) NextJobID() string {
	used := make(map[string]bool)
	for _, job := range s.Jobs() {
		used[job] = true
	}
	for _, job := range s.Children(K(NSHistory)) {
		used[job] = true
	}
	for n := 0; ; n++ {
		job := "job" + strconv.Itoa(n)
		if !used[job] {
			return job
		}
	}
}

// PriorStatus возвращает последний финальный статус узла из истории,
// начиная с самого нового job.
func (s *Store) PriorStatus(id domain.NodeID) (domain.NodeStatus, bool) {
	jobs := s.Jobs()
	for i := len(jobs) - 1; i >= 0; i-- {
		if st, ok := s.NodeStatus(jobs[i], id); ok && st.IsTerminal() {
			return st, true
		}
	}
	return "", false
}

// SetToolValue записывает настройку инструмента для узла.
func (s *Store) SetToolValue(tool string, id domain.NodeID, field string, value any) error {
	return s.Set(ToolKey(tool, id, field), value)
}

// AddToolValue добавляет значение в список настройки инструмента.
func (s *Store) AddToolValue(tool string, id domain.NodeID, field string, value any) error {
	return s.Add(ToolKey(tool, id, field), value)
}

// ParseKey разбирает путь вида "a/b/c".
func ParseKey(path string) (Key, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrEmptyKey
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%q: %w", path, ErrEmptyKey)
		}
	}
	return Key(parts), nil
}
