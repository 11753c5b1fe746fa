// Package cli реализует инструмент командной строки Sequencer.
//
// CLI работает с Sequencer API по HTTP и не импортирует внутренние
// пакеты системы: типы ответов дублируются в client.go.
//
// Команды:
//   - functions list
//   - plan validate|execute|submit -f FILE (JSON или YAML, - для stdin)
//   - ask "QUERY" [--dry-run]
//   - run list|show
//
// Глобальные флаги --api-url и --json. Данные выводятся в stdout,
// сообщения в stderr, поэтому вывод можно передавать дальше:
//
//	sequencer run list --json | jq '.[].status'
//
// Группы команд создаются фабриками (NewPlanCmd и т.д.), которые
// принимают clientFn и outputFn. Замыкания создают Client и Output
// после разбора PersistentFlags.
package cli
