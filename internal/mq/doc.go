// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий срабатываний
//   - sink.go       — HistorySink: мост между dispatcher и брокером
//
// Типы событий:
//   - trigger.fired  — срабатывание доставлено получателю
//   - trigger.failed — доставка исчерпала попытки
//
// Chronos только публикует: историю срабатываний потребляют внешние
// системы (аудит, алертинг). Если брокер недоступен, worker продолжает
// работать — история срабатываний вспомогательна, доставка первична.
package mq
