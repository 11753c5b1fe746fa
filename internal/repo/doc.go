// Package repo хранит историю выполнения планов в PostgreSQL.
//
// Таблица runs создаётся EnsureSchema. План и результат
// хранятся в колонках JSONB в том же виде, в каком их отдаёт API.
package repo
