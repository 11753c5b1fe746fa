// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (реестр, движок, оркестратор, планировщик)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (recovery, logging, metrics, rate limit)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - plan_handler.go   — функции и планы: /functions, /plans/*
//   - query_handler.go  — запросы на естественном языке: /query/*
//   - run_handler.go    — история выполнения: /runs
//   - health_handler.go — /healthz и /api/v1/health
//
// Ошибки возвращаются в виде {"error": {"code": ..., "message": ...}}.
package api
