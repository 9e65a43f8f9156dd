// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (store, clock, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления schedules:
// создание, просмотр, обновление, pause/resume, удаление.
package api
