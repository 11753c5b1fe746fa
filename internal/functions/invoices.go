package functions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
}

// monthNumber приводит название или номер месяца к виду "03".
// Неизвестное значение даёт "01".
func monthNumber(month string) string {
	m := strings.ToLower(strings.TrimSpace(month))
	if n, ok := monthNumbers[m]; ok {
		return n
	}
	for name, n := range monthNumbers {
		if len(m) >= 3 && strings.HasPrefix(name, m) {
			return n
		}
	}
	if i, err := strconv.Atoi(m); err == nil && i >= 1 && i <= 12 {
		return fmt.Sprintf("%02d", i)
	}
	return "01"
}

func (l *library) invoiceFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        "get_invoices",
			Description: "Retrieve invoices for a specific month",
			Inputs:      []domain.Param{in("month", domain.TypeString, "Month name or number, e.g. March")},
			Outputs: []domain.Field{
				out("invoices", domain.TypeList, "Invoices with invoice_id, amount, status, date and client"),
				out("count", domain.TypeInteger, "Number of invoices"),
			},
			Impl: getInvoices,
		},
		{
			Name:        "filter_invoices_by_amount",
			Description: "Keep invoices whose amount is at least min_amount",
			Inputs: []domain.Param{
				in("invoices", domain.TypeList, "Invoices to filter"),
				in("min_amount", domain.TypeNumber, "Minimum amount"),
			},
			Outputs: []domain.Field{
				out("filtered_invoices", domain.TypeList, "Matching invoices"),
				out("count", domain.TypeInteger, "Number of matching invoices"),
			},
			Impl: filterInvoicesByAmount,
		},
		{
			Name:        "summarize_invoices",
			Description: "Create a summary of invoice data",
			Inputs:      []domain.Param{in("invoices", domain.TypeList, "Invoices to summarize")},
			Outputs: []domain.Field{
				out("summary", domain.TypeRecord, "Totals, counts by status and average amount"),
				out("total_amount", domain.TypeNumber, "Sum of invoice amounts"),
				out("count", domain.TypeInteger, "Number of invoices"),
			},
			Impl: summarizeInvoices,
		},
		{
			Name:        "calculate_total",
			Description: "Sum a numeric field across a list of items",
			Inputs: []domain.Param{
				in("items", domain.TypeList, "Items to sum"),
				in("field", domain.TypeString, "Field to sum"),
			},
			Outputs: []domain.Field{
				out("total", domain.TypeNumber, "Sum of the field"),
				out("count", domain.TypeInteger, "Number of items"),
				out("field", domain.TypeString, "Summed field"),
			},
			Impl: calculateTotal,
		},
		{
			Name:        "group_by_field",
			Description: "Group items by the value of a field",
			Inputs: []domain.Param{
				in("data", domain.TypeList, "Items to group"),
				in("field", domain.TypeString, "Field to group by"),
			},
			Outputs: []domain.Field{
				out("grouped_data", domain.TypeRecord, "Items keyed by field value"),
				out("groups", domain.TypeInteger, "Number of groups"),
			},
			Impl: groupByField,
		},
		{
			Name:        "filter_by_date_range",
			Description: "Keep items whose date field lies within [start_date, end_date]",
			Inputs: []domain.Param{
				in("data", domain.TypeList, "Items to filter"),
				in("date_field", domain.TypeString, "Field holding an ISO date"),
				in("start_date", domain.TypeString, "Inclusive start, YYYY-MM-DD"),
				in("end_date", domain.TypeString, "Inclusive end, YYYY-MM-DD"),
			},
			Outputs: []domain.Field{
				out("filtered_data", domain.TypeList, "Matching items"),
				out("count", domain.TypeInteger, "Number of matching items"),
			},
			Impl: filterByDateRange,
		},
	}
}

func getInvoices(_ context.Context, args domain.Args) (domain.Value, error) {
	month, err := stringArg(args, "month")
	if err != nil {
		return domain.Value{}, err
	}

	tag := strings.ToUpper(strings.TrimSpace(month))
	if tag == "" {
		tag = "UNKNOWN"
	}
	num := monthNumber(month)

	invoice := func(seq int, amount float64, status, day, client string) map[string]any {
		return map[string]any{
			"invoice_id": fmt.Sprintf("INV-%s-%03d", tag, seq),
			"amount":     amount,
			"status":     status,
			"date":       fmt.Sprintf("2024-%s-%s", num, day),
			"client":     client,
		}
	}

	invoices := []any{
		invoice(1, 5000, "paid", "15", "Acme Corp"),
		invoice(2, 7500, "paid", "20", "Tech Solutions"),
		invoice(3, 3000, "pending", "25", "StartUp Inc"),
		invoice(4, 3200, "overdue", "28", "Global Inc"),
	}

	return record(map[string]any{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

func filterInvoicesByAmount(_ context.Context, args domain.Args) (domain.Value, error) {
	invoices, err := recordsArg(args, "invoices")
	if err != nil {
		return domain.Value{}, err
	}
	minAmount, err := numberArg(args, "min_amount")
	if err != nil {
		return domain.Value{}, err
	}

	var filtered []domain.Value
	for _, inv := range invoices {
		if numericField(inv, "amount") >= minAmount {
			filtered = append(filtered, inv)
		}
	}

	return domain.Record(map[string]domain.Value{
		"filtered_invoices": domain.List(filtered...),
		"count":             domain.Int(len(filtered)),
	}), nil
}

func summarizeInvoices(_ context.Context, args domain.Args) (domain.Value, error) {
	invoices, err := recordsArg(args, "invoices")
	if err != nil {
		return domain.Value{}, err
	}

	if len(invoices) == 0 {
		return record(map[string]any{
			"summary":      "No invoices found",
			"total_amount": 0,
			"count":        0,
		})
	}

	var total float64
	breakdown := make(map[string]any)
	for _, inv := range invoices {
		total += numericField(inv, "amount")

		status := "unknown"
		if s, ok := inv.Field("status"); ok {
			if str, ok := s.AsString(); ok && str != "" {
				status = str
			}
		}
		n, _ := breakdown[status].(int)
		breakdown[status] = n + 1
	}

	countOf := func(status string) int {
		n, _ := breakdown[status].(int)
		return n
	}

	return record(map[string]any{
		"summary": map[string]any{
			"total_invoices":   len(invoices),
			"total_amount":     total,
			"paid_invoices":    countOf("paid"),
			"pending_invoices": countOf("pending"),
			"overdue_invoices": countOf("overdue"),
			"average_amount":   total / float64(len(invoices)),
			"status_breakdown": breakdown,
		},
		"total_amount": total,
		"count":        len(invoices),
	})
}

func calculateTotal(_ context.Context, args domain.Args) (domain.Value, error) {
	items, err := recordsArg(args, "items")
	if err != nil {
		return domain.Value{}, err
	}
	field, err := stringArg(args, "field")
	if err != nil {
		return domain.Value{}, err
	}

	var total float64
	for _, item := range items {
		total += numericField(item, field)
	}

	return record(map[string]any{
		"total": total,
		"count": len(items),
		"field": field,
	})
}

func groupByField(_ context.Context, args domain.Args) (domain.Value, error) {
	data, err := recordsArg(args, "data")
	if err != nil {
		return domain.Value{}, err
	}
	field, err := stringArg(args, "field")
	if err != nil {
		return domain.Value{}, err
	}

	groups := make(map[string][]domain.Value)
	for _, item := range data {
		key := "unknown"
		if v, ok := item.Field(field); ok && !v.IsNull() {
			key = v.String()
		}
		groups[key] = append(groups[key], item)
	}

	grouped := make(map[string]domain.Value, len(groups))
	for key, items := range groups {
		grouped[key] = domain.List(items...)
	}

	return domain.Record(map[string]domain.Value{
		"grouped_data": domain.Record(grouped),
		"groups":       domain.Int(len(grouped)),
	}), nil
}

// filterByDateRange сравнивает даты как строки: для ISO формата
// лексикографический порядок совпадает с хронологическим.
func filterByDateRange(_ context.Context, args domain.Args) (domain.Value, error) {
	data, err := recordsArg(args, "data")
	if err != nil {
		return domain.Value{}, err
	}
	dateField, err := stringArg(args, "date_field")
	if err != nil {
		return domain.Value{}, err
	}
	start, err := stringArg(args, "start_date")
	if err != nil {
		return domain.Value{}, err
	}
	end, err := stringArg(args, "end_date")
	if err != nil {
		return domain.Value{}, err
	}

	var filtered []domain.Value
	for _, item := range data {
		v, ok := item.Field(dateField)
		if !ok {
			continue
		}
		date, ok := v.AsString()
		if !ok || date == "" {
			continue
		}
		if start <= date && date <= end {
			filtered = append(filtered, item)
		}
	}

	return domain.Record(map[string]domain.Value{
		"filtered_data": domain.List(filtered...),
		"count":         domain.Int(len(filtered)),
	}), nil
}
