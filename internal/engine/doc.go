// Package engine содержит модель графа flow.
//
// Включает:
//   - validate.go — проверка FlowSpec (идентичность узлов, входы, веса)
//   - graph.go    — построение графа и топологический порядок
//   - plan.go     — выбор выполняемых узлов по steplist
//   - threads.go  — расчёт числа потоков узла
//   - flowfile.go — загрузка flow из YAML/JSON
//
// Engine не знает семантики инструментов: он понимает только
// топологию, статусы и веса метрик.
package engine
