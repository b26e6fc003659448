package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Factory создаёт адаптер для инструмента, не зарегистрированного явно.
type Factory func(name string) Adapter

// Registry — реестр адаптеров по имени инструмента.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback Factory
}

// NewRegistry создаёт пустой реестр.
//
// fallback (может быть nil) используется для инструментов без явной
// регистрации — обычно это CommandAdapter, настраиваемый из flow.
func NewRegistry(fallback Factory) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		fallback: fallback,
	}
}

// Register добавляет адаптер.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[adapter.Name()] = adapter
}

// Get возвращает адаптер инструмента.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[name]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	if r.fallback != nil {
		if adapter := r.fallback(name); adapter != nil {
			return adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// Has проверяет, зарегистрирован ли адаптер явно.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.adapters[name]
	return ok
}

// Names возвращает имена зарегистрированных адаптеров.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
