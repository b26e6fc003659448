// Package orchestrator выполняет flow.
//
// Controller отвечает за:
//   - Валидацию flow и построение графа
//   - Выбор выполняемых узлов по steplist
//   - Настройку инструментов (Setup) до запуска первого узла
//   - Запуск Scheduler и запись статусов в историю manifest
//   - Финализацию job (RunResult или RunFatalError)
//
// Scheduler — единственный координатор статусов: он выбирает готовые
// узлы, запускает инструменты в пуле с ограничением параллелизма и
// потоков, вычисляет join/minimum и прекращает запуск новых узлов,
// когда успех job уже невозможен.
package orchestrator
