package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/pdflow/internal/domain"
)

// Store — хранилище расписаний и их состояния.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

var scheduleValidate *validator.Validate

func init() {
	scheduleValidate = validator.New()
	_ = scheduleValidate.RegisterValidation("cronexpr", func(fl validator.FieldLevel) bool {
		return ValidateCronExpr(fl.Field().String()) == nil
	})
}

// schedulesFile — файл расписаний сервера.
//
// Пример:
//
//	schedules:
//	  - name: nightly
//	    flow_file: flows/asicflow.yaml
//	    manifest: build/manifest.json
//	    cron_expr: "0 2 * * *"
//	    timezone: Europe/Moscow
//	    enabled: true
type schedulesFile struct {
	Schedules []domain.Schedule `yaml:"schedules" validate:"dive"`
}

// LoadSchedules читает и проверяет файл расписаний.
// Для каждого расписания вычисляется первое время запуска.
func LoadSchedules(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	return ParseSchedules(data)
}

// ParseSchedules разбирает содержимое файла расписаний.
func ParseSchedules(data []byte) ([]domain.Schedule, error) {
	var file schedulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedules, err)
	}
	if err := scheduleValidate.Struct(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedules, err)
	}

	now := time.Now()
	seen := make(map[string]bool, len(file.Schedules))
	for i := range file.Schedules {
		s := &file.Schedules[i]
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, s.Name)
		}
		seen[s.Name] = true

		next, err := CalculateNextDue(s, now)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule %s: %w", ErrInvalidSchedules, s.Name, err)
		}
		s.NextDueAt = &next
	}
	return file.Schedules, nil
}

// MemoryStore — Store в памяти процесса (сервер без Postgres).
type MemoryStore struct {
	mu        sync.Mutex
	schedules map[string]*domain.Schedule
}

// NewMemoryStore создаёт MemoryStore с копиями расписаний.
func NewMemoryStore(schedules []domain.Schedule) *MemoryStore {
	m := &MemoryStore{schedules: make(map[string]*domain.Schedule, len(schedules))}
	for i := range schedules {
		s := schedules[i]
		m.schedules[s.Name] = &s
	}
	return m
}

// ListDue возвращает расписания, готовые к выполнению, по возрастанию next_due_at.
func (m *MemoryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := make([]domain.Schedule, 0)
	for _, s := range m.schedules {
		if s.IsDue(now) {
			due = append(due, *s)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextDueAt.Before(*due[j].NextDueAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Update записывает состояние расписания.
func (m *MemoryStore) Update(ctx context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.schedules[s.Name]
	if !ok {
		return fmt.Errorf("schedule %s not found", s.Name)
	}
	existing.NextDueAt = s.NextDueAt
	existing.LastRunAt = s.LastRunAt
	existing.LastJobID = s.LastJobID
	return nil
}

// Get возвращает копию расписания.
func (m *MemoryStore) Get(name string) (domain.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[name]
	if !ok {
		return domain.Schedule{}, false
	}
	return *s, true
}

// GetByName возвращает копию расписания или ErrScheduleNotFound.
func (m *MemoryStore) GetByName(ctx context.Context, name string) (*domain.Schedule, error) {
	s, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}
	return &s, nil
}

// List возвращает копии всех расписаний по имени.
func (m *MemoryStore) List(ctx context.Context) ([]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
