package functions

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shaiso/Sequencer/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (l *library) textFunctions() []domain.FunctionSpec {
	transform := func(name, description, field string, fn func(string) string) domain.FunctionSpec {
		return domain.FunctionSpec{
			Name:        name,
			Description: description,
			Inputs:      []domain.Param{in("text", domain.TypeString, "Text to transform")},
			Outputs: []domain.Field{
				out(field, domain.TypeString, "Transformed text"),
				out("original", domain.TypeString, "Original text"),
			},
			Impl: func(_ context.Context, args domain.Args) (domain.Value, error) {
				text, err := stringArg(args, "text")
				if err != nil {
					return domain.Value{}, err
				}
				return record(map[string]any{
					field:      fn(text),
					"original": text,
				})
			},
		}
	}

	return []domain.FunctionSpec{
		transform("uppercase_string", "Convert text to uppercase", "uppercase_text", strings.ToUpper),
		transform("lowercase_string", "Convert text to lowercase", "lowercase_text", strings.ToLower),
		transform("reverse_string", "Reverse text", "reversed_text", reverse),
		{
			Name:        "validate_email",
			Description: "Check whether an email address is well formed",
			Inputs:      []domain.Param{in("email", domain.TypeString, "Email address")},
			Outputs: []domain.Field{
				out("is_valid", domain.TypeBoolean, "Whether the address is well formed"),
				out("email", domain.TypeString, "Checked address"),
			},
			Impl: validateEmail,
		},
	}
}

func (l *library) timeFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        "get_current_time",
			Description: "Get the current date and time",
			Outputs: []domain.Field{
				out("current_time", domain.TypeString, "YYYY-MM-DD HH:MM:SS"),
				out("timestamp", domain.TypeNumber, "Unix timestamp in seconds"),
				out("formatted", domain.TypeString, "Long human readable form"),
			},
			Impl: l.currentTime,
		},
	}
}

// reverse переворачивает строку по рунам.
func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func validateEmail(_ context.Context, args domain.Args) (domain.Value, error) {
	email, err := stringArg(args, "email")
	if err != nil {
		return domain.Value{}, err
	}
	return record(map[string]any{
		"is_valid": emailPattern.MatchString(strings.TrimSpace(email)),
		"email":    email,
	})
}

func (l *library) currentTime(context.Context, domain.Args) (domain.Value, error) {
	now := l.deps.Now()
	return record(map[string]any{
		"current_time": now.Format(time.DateTime),
		"timestamp":    float64(now.UnixMilli()) / 1000,
		"formatted":    now.Format("Monday, January 02, 2006 at 03:04:05 PM"),
	})
}

// hostOf возвращает хост URL без порта. Адрес без схемы считается http.
func hostOf(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
