// Sequencer CLI — инструмент командной строки для работы с API.
//
// Использование:
//
//	sequencer [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	functions  Каталог функций
//	plan       Проверка и выполнение файлов планов
//	ask        Запрос на естественном языке
//	run        История runs
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/Sequencer/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
