package tools

// Adapter — протокол инструмента.
//
// Setup вызывается для каждого выполняемого узла до начала job;
// ошибка Setup останавливает job до запуска первого узла.
// PreProcess и PostProcess вызываются для узла вокруг запуска
// инструмента. PostProcess возвращает код результата: 0 — успех.
type Adapter interface {
	// Name возвращает имя инструмента.
	Name() string

	// Setup записывает в manifest исполняемый файл, опции и
	// ожидаемые артефакты узла.
	Setup(cfg *NodeConfig) error

	// PreProcess готовит входные данные перед запуском.
	PreProcess(cfg *NodeConfig) error

	// PostProcess разбирает результаты и записывает метрики узла.
	PostProcess(cfg *NodeConfig) (int, error)

	// ParseVersion нормализует вывод запроса версии.
	ParseVersion(raw string) string
}
