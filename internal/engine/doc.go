// Package engine содержит движок выполнения планов.
//
// Включает:
//   - reference.go — разбор ссылок ($output_N.path, {{output_N.path}}, $name) и планов
//   - resolver.go  — разрешение связываний против OutputStore
//   - store.go     — OutputStore, outputs шагов одного выполнения
//   - check.go     — статическая проверка шагов
//   - engine.go    — выполнение плана
//   - validator.go — dry run
//   - summary.go   — текстовый отчёт
//
// Выполнение идёт в две фазы: сначала проверяется весь план,
// затем шаги выполняются строго по порядку на вызывающей горутине.
package engine
