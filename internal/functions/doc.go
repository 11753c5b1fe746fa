// Package functions содержит библиотеку функций, доступных планам.
//
// # Обзор
//
// Каждая функция описывается domain.FunctionSpec: имя, описание,
// входные параметры и поля результата. Реализация получает уже
// разрешённые аргументы и возвращает запись:
//
//	specs := functions.New(functions.Deps{Store: store})
//	reg, err := registry.New(specs...)
//
// Порядок функций в New определяет листинг и каталог планировщика.
//
// # Группы функций
//
//   - invoices.go — get_invoices, filter_invoices_by_amount, summarize_invoices,
//     calculate_total, group_by_field, filter_by_date_range
//   - math.go     — арифметика, check_prime, generate_random_number, convert_currency
//   - text.go     — преобразования строк, validate_email, get_current_time
//   - email.go    — send_email (SMTP или запись в лог)
//   - files.go    — save_to_file, read_from_file, download_file через objectstore
//   - web.go      — check_url_status, extract_domain, web_summarizer
//
// # Зависимости
//
// Deps задаёт хранилище, HTTP клиент, Mailer, логгер и источники
// времени и случайных чисел. Нулевые значения заменяются значениями
// по умолчанию, что позволяет подменять их в тестах.
//
// # Ошибки
//
// Несовместимый аргумент даёт *ArgError (errors.Is(err, ErrInvalidArgument)).
// Движок оборачивает любую ошибку реализации в FUNCTION_EXECUTION_ERROR.
package functions
