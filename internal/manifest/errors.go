package manifest

import "errors"

var (
	// ErrEmptyKey — пустой путь ключа.
	ErrEmptyKey = errors.New("empty key path")

	// ErrKeyConflict — путь проходит через лист или указывает на внутренний узел.
	ErrKeyConflict = errors.New("key path conflicts with existing value")

	// ErrNotList — Add на значение, которое не является списком.
	ErrNotList = errors.New("value is not a list")

	// ErrInvalidValue — неподдерживаемый тип значения.
	ErrInvalidValue = errors.New("unsupported value type")
)
