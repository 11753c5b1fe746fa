// Package orchestrator ведёт run через жизненный цикл.
//
// Orchestrator отвечает за:
//   - Проверку ограничений плана до выполнения
//   - Выполнение плана движком с таймаутом
//   - Сводку результата
//   - Сохранение run в БД (если она настроена)
//   - События run.pending и run.completed
//
// API вызывает Execute для синхронного выполнения и Submit для
// асинхронного. Worker вызывает Process для runs из очереди.
package orchestrator
