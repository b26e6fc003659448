// Package tools описывает протокол адаптеров инструментов.
//
// Адаптер знает семантику конкретного инструмента: как его настроить
// (Setup), подготовить входы (PreProcess), разобрать результаты
// (PostProcess) и нормализовать строку версии (ParseVersion).
// Планировщик ничего не знает об инструментах и работает только
// через этот интерфейс.
//
// Адаптер видит manifest только через NodeConfig: запись разрешена
// в пространства имён своего узла.
package tools
