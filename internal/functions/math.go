package functions

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

// exchangeRates — фиксированные курсы валют. Неизвестная пара конвертируется по курсу 1.
var exchangeRates = map[[2]string]float64{
	{"USD", "EUR"}: 0.85,
	{"EUR", "USD"}: 1.18,
	{"USD", "GBP"}: 0.73,
	{"GBP", "USD"}: 1.37,
	{"EUR", "GBP"}: 0.86,
	{"GBP", "EUR"}: 1.16,
}

func (l *library) mathFunctions() []domain.FunctionSpec {
	binary := func(name, description, symbol string, op func(a, b float64) (float64, error)) domain.FunctionSpec {
		return domain.FunctionSpec{
			Name:        name,
			Description: description,
			Inputs: []domain.Param{
				in("a", domain.TypeNumber, "First operand"),
				in("b", domain.TypeNumber, "Second operand"),
			},
			Outputs: []domain.Field{
				out("result", domain.TypeNumber, "Result of the operation"),
				out("operation", domain.TypeString, "Human readable operation"),
			},
			Impl: arithmetic(symbol, op),
		}
	}

	return []domain.FunctionSpec{
		binary("add_numbers", "Add two numbers", "+", func(a, b float64) (float64, error) {
			return a + b, nil
		}),
		binary("subtract_numbers", "Subtract b from a", "-", func(a, b float64) (float64, error) {
			return a - b, nil
		}),
		binary("multiply_numbers", "Multiply two numbers", "*", func(a, b float64) (float64, error) {
			return a * b, nil
		}),
		binary("divide_numbers", "Divide a by b", "/", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, ErrDivisionByZero
			}
			return a / b, nil
		}),
		{
			Name:        "check_prime",
			Description: "Check whether a number is prime",
			Inputs:      []domain.Param{in("number", domain.TypeInteger, "Number to check")},
			Outputs: []domain.Field{
				out("is_prime", domain.TypeBoolean, "Whether the number is prime"),
				out("number", domain.TypeInteger, "Checked number"),
				out("explanation", domain.TypeString, "Why the number is or is not prime"),
			},
			Impl: checkPrime,
		},
		{
			Name:        "generate_random_number",
			Description: "Generate a random number between min_val and max_val",
			Inputs: []domain.Param{
				in("min_val", domain.TypeNumber, "Lower bound"),
				in("max_val", domain.TypeNumber, "Upper bound"),
			},
			Outputs: []domain.Field{
				out("random_number", domain.TypeNumber, "Random number rounded to 2 decimals"),
				out("range", domain.TypeString, "Range description"),
			},
			Impl: l.generateRandomNumber,
		},
		{
			Name:        "convert_currency",
			Description: "Convert an amount between USD, EUR and GBP",
			Inputs: []domain.Param{
				in("amount", domain.TypeNumber, "Amount to convert"),
				in("from_currency", domain.TypeString, "Source currency code"),
				in("to_currency", domain.TypeString, "Target currency code"),
			},
			Outputs: []domain.Field{
				out("converted_amount", domain.TypeNumber, "Converted amount"),
				out("rate", domain.TypeNumber, "Applied exchange rate"),
			},
			Impl: convertCurrency,
		},
	}
}

func arithmetic(symbol string, op func(a, b float64) (float64, error)) domain.Func {
	return func(_ context.Context, args domain.Args) (domain.Value, error) {
		a, err := numberArg(args, "a")
		if err != nil {
			return domain.Value{}, err
		}
		b, err := numberArg(args, "b")
		if err != nil {
			return domain.Value{}, err
		}

		result, err := op(a, b)
		if err != nil {
			return domain.Value{}, err
		}

		return record(map[string]any{
			"result":    result,
			"operation": fmt.Sprintf("%s %s %s = %s", formatNumber(a), symbol, formatNumber(b), formatNumber(result)),
		})
	}
}

func checkPrime(_ context.Context, args domain.Args) (domain.Value, error) {
	n, err := intArg(args, "number")
	if err != nil {
		return domain.Value{}, err
	}

	result := func(prime bool, explanation string) (domain.Value, error) {
		return record(map[string]any{
			"is_prime":    prime,
			"number":      n,
			"explanation": explanation,
		})
	}

	if n < 2 {
		return result(false, fmt.Sprintf("%d is not prime (less than 2)", n))
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return result(false, fmt.Sprintf("%d is not prime (divisible by %d)", n, i))
		}
	}
	return result(true, fmt.Sprintf("%d is prime", n))
}

func (l *library) generateRandomNumber(_ context.Context, args domain.Args) (domain.Value, error) {
	lo, err := numberArg(args, "min_val")
	if err != nil {
		return domain.Value{}, err
	}
	hi, err := numberArg(args, "max_val")
	if err != nil {
		return domain.Value{}, err
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	n := lo + l.deps.Random()*(hi-lo)

	return record(map[string]any{
		"random_number": round2(n),
		"range":         fmt.Sprintf("between %s and %s", formatNumber(lo), formatNumber(hi)),
	})
}

func convertCurrency(_ context.Context, args domain.Args) (domain.Value, error) {
	amount, err := numberArg(args, "amount")
	if err != nil {
		return domain.Value{}, err
	}
	from, err := stringArg(args, "from_currency")
	if err != nil {
		return domain.Value{}, err
	}
	to, err := stringArg(args, "to_currency")
	if err != nil {
		return domain.Value{}, err
	}

	rate, ok := exchangeRates[[2]string{strings.ToUpper(from), strings.ToUpper(to)}]
	if !ok {
		rate = 1
	}

	return record(map[string]any{
		"converted_amount": round2(amount * rate),
		"rate":             rate,
	})
}

func round2(n float64) float64 {
	return math.Round(n*100) / 100
}
