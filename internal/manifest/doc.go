// Package manifest реализует хранилище manifest — иерархическое дерево
// значений, адресуемое путями ключей.
//
// Manifest — единственное разделяемое состояние между узлами flow:
//
//   - metric/<step>/<index>/<name>   — скалярные метрики узла
//   - output/<step>/<index>/<name>   — артефакты узла (имя → путь)
//   - select/<step>/<index>          — вход, выбранный minimum
//   - tool/<tool>/<step>/<index>/... — настройки инструмента для узла
//   - history/<job>/flowstatus/<step>/<index>/status — статусы узлов job
//   - jobs                           — список job в порядке создания
//
// Каждый узел пишет только в собственное пространство имён. Store
// дополнительно защищён мьютексом: конкурентные чтения и записи разных
// узлов безопасны на уровне памяти.
//
// Store сериализуется в JSON-документ (ReadFile / WriteFile).
package manifest
