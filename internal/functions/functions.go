package functions

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/objectstore"
	"github.com/shaiso/Sequencer/internal/registry"
)

const (
	// Значения по умолчанию.
	defaultHTTPTimeout      = 30 * time.Second
	defaultMaxDownloadBytes = 10 * 1024 * 1024 // 10 MB
	defaultSummaryLength    = 500
	userAgent               = "Sequencer/1.0 (+https://github.com/shaiso/Sequencer)"
)

// Deps — внешние зависимости библиотеки функций.
//
// Нулевые поля заменяются значениями по умолчанию, кроме Store:
// без хранилища файловые функции возвращают ошибку.
type Deps struct {
	// Store — хранилище для save_to_file, read_from_file и download_file.
	Store objectstore.Store

	// HTTPClient — клиент для сетевых функций.
	HTTPClient *http.Client

	// Mailer — отправка писем. Если nil, письма только логируются.
	Mailer Mailer

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger

	// Now — источник времени для get_current_time.
	Now func() time.Time

	// Random возвращает число в [0, 1) для generate_random_number.
	Random func() float64

	// MaxDownloadBytes ограничивает размер скачиваемых и читаемых файлов.
	MaxDownloadBytes int64
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Random == nil {
		d.Random = rand.Float64
	}
	if d.MaxDownloadBytes <= 0 {
		d.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	return d
}

// library связывает реализации функций с зависимостями.
type library struct {
	deps Deps
}

// New возвращает описания всех функций в порядке регистрации.
//
// Порядок определяет листинг и каталог в промпте планировщика.
func New(deps Deps) []domain.FunctionSpec {
	lib := &library{deps: deps.withDefaults()}

	var specs []domain.FunctionSpec
	specs = append(specs, lib.invoiceFunctions()...)
	specs = append(specs, lib.mathFunctions()...)
	specs = append(specs, lib.textFunctions()...)
	specs = append(specs, lib.emailFunctions()...)
	specs = append(specs, lib.timeFunctions()...)
	specs = append(specs, lib.fileFunctions()...)
	specs = append(specs, lib.webFunctions()...)
	return specs
}

// NewRegistry создаёт реестр со всеми функциями библиотеки.
func NewRegistry(deps Deps) (*registry.Registry, error) {
	return registry.New(New(deps)...)
}

// record собирает результат функции.
func record(fields map[string]any) (domain.Value, error) {
	return domain.FromAny(fields)
}

// Конструкторы описаний параметров.

func in(name string, t domain.Type, description string) domain.Param {
	return domain.Param{Name: name, Type: t, Description: description}
}

func optional(name string, t domain.Type, description string, def domain.Value) domain.Param {
	return domain.Param{Name: name, Type: t, Description: description, Optional: true, Default: &def}
}

func out(name string, t domain.Type, description string) domain.Field {
	return domain.Field{Name: name, Type: t, Description: description}
}
