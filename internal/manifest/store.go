package manifest

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Key — структурированный путь ключа.
type Key []string

// K создаёт Key из частей.
func K(parts ...string) Key {
	return Key(parts)
}

// Append возвращает новый ключ с добавленными частями.
func (k Key) Append(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// String возвращает путь в виде "a/b/c".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Store — дерево значений manifest.
//
// Внутренние узлы — map[string]any, листья — string, float64, bool
// или список ([]any) из таких значений.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

// New создаёт пустой Store.
func New() *Store {
	return &Store{root: make(map[string]any)}
}

// Get возвращает значение листа по ключу.
// Для отсутствующего ключа и для внутреннего узла возвращает false.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	if _, interior := v.(map[string]any); interior {
		return nil, false
	}
	return copyValue(v), true
}

// GetString возвращает строковое значение листа.
func (s *Store) GetString(key Key) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// GetFloat возвращает числовое значение листа.
func (s *Store) GetFloat(key Key) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// GetStrings возвращает список строк.
// Скалярное строковое значение возвращается как список из одного элемента.
func (s *Store) GetStrings(key Key) []string {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// Set записывает значение листа, создавая промежуточные узлы.
func (s *Store) Set(key Key, value any) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.ensureParent(key)
	if err != nil {
		return err
	}
	last := key[len(key)-1]
	if existing, ok := parent[last]; ok {
		if _, interior := existing.(map[string]any); interior {
			return fmt.Errorf("set %s: %w", key, ErrKeyConflict)
		}
	}
	parent[last] = v
	return nil
}

// Add добавляет значение в конец списка по ключу.
// Если ключ не существует, создаётся список из одного элемента.
func (s *Store) Add(key Key, value any) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("add %s: %w", key, err)
	}
	if _, isList := v.([]any); isList {
		return fmt.Errorf("add %s: %w", key, ErrInvalidValue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.ensureParent(key)
	if err != nil {
		return err
	}
	last := key[len(key)-1]
	existing, ok := parent[last]
	if !ok {
		parent[last] = []any{v}
		return nil
	}
	list, isList := existing.([]any)
	if !isList {
		return fmt.Errorf("add %s: %w", key, ErrNotList)
	}
	parent[last] = append(list, v)
	return nil
}

// Exists проверяет наличие ключа (листа или внутреннего узла).
func (s *Store) Exists(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.lookup(key)
	return ok
}

// Children возвращает отсортированные имена дочерних узлов.
// Пустой ключ означает корень. Для листа и отсутствующего ключа — nil.
func (s *Store) Children(key Key) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.lookup(key)
	if !ok {
		return nil
	}
	m, interior := v.(map[string]any)
	if !interior {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete удаляет ключ вместе с поддеревом.
// Возвращает true, если ключ существовал.
func (s *Store) Delete(key Key) bool {
	if len(key) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parentVal, ok := s.lookup(key[:len(key)-1])
	if !ok {
		return false
	}
	parent, interior := parentVal.(map[string]any)
	if !interior {
		return false
	}
	last := key[len(key)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// lookup находит значение по ключу. Вызывается под блокировкой.
func (s *Store) lookup(key Key) (any, bool) {
	var cur any = s.root
	for _, part := range key {
		m, interior := cur.(map[string]any)
		if !interior {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// ensureParent создаёт внутренние узлы до родителя ключа.
// Вызывается под блокировкой записи.
func (s *Store) ensureParent(key Key) (map[string]any, error) {
	cur := s.root
	for i, part := range key[:len(key)-1] {
		next, ok := cur[part]
		if !ok {
			m := make(map[string]any)
			cur[part] = m
			cur = m
			continue
		}
		m, interior := next.(map[string]any)
		if !interior {
			return nil, fmt.Errorf("%s: %w", key[:i+1], ErrKeyConflict)
		}
		cur = m
	}
	return cur, nil
}

// normalize приводит значение к одному из поддерживаемых типов листа.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, ErrInvalidValue
	}
	if list, ok := value.([]any); ok {
		out := make([]any, 0, len(list))
		for _, item := range list {
			v, err := normalizeScalar(reflect.ValueOf(item))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := normalizeScalar(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return normalizeScalar(rv)
}

func normalizeScalar(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Float32, reflect.Float64:
		// JSON не представляет NaN и Inf, такой manifest не сохранить.
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite number %v", ErrInvalidValue, f)
		}
		return f, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Interface:
		if rv.IsNil() {
			return nil, ErrInvalidValue
		}
		return normalizeScalar(rv.Elem())
	default:
		return nil, ErrInvalidValue
	}
}

func copyValue(v any) any {
	if list, ok := v.([]any); ok {
		return slices.Clone(list)
	}
	return v
}
