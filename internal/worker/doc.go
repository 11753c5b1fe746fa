// Package worker выполняет планы, отправленные на асинхронное выполнение.
//
// # Обзор
//
// API сохраняет run в статусе PENDING и публикует run.pending.
// Worker получает событие из очереди runs.pending или находит run
// при опросе БД и передаёт его в Processor (orchestrator):
//
//	w := worker.New(worker.Config{
//	    Processor: orch,
//	    Pending:   runRepo,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка run
//
//  1. Получение id (из очереди или polling)
//  2. Processor переводит run из PENDING в RUNNING; если run уже взят,
//     сообщение подтверждается без выполнения
//  3. План выполняется движком, результат сохраняется
//  4. Публикуется run.completed
//
// # Ошибки
//
// Ошибка БД при обработке возвращает сообщение в очередь. Повторная
// ошибка отправляет его в DLQ. Повторов выполнения плана нет: ошибки
// шагов записываются в результат run.
package worker
