// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ и переподключение
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.pending   — план отправлен на асинхронное выполнение
//   - run.completed — run завершён, payload содержит итоговый статус
//
// Exchanges:
//   - sequencer.runs — события runs
//   - sequencer.dlq  — dead letter queue
package mq
