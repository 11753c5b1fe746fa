// Package planner превращает запросы на естественном языке в планы.
//
// LLMPlanner отправляет модели каталог функций и запрос, затем
// извлекает из ответа первый JSON массив шагов. FallbackPlanner
// составляет план по ключевым словам без модели. Chain опрашивает
// их по порядку:
//
//	chain := planner.NewChain([]planner.Planner{
//	    planner.NewLLMPlanner(model, reg.List()),
//	    planner.NewFallbackPlanner(),
//	})
//	raw, err := chain.Plan(ctx, "get invoices for March and summarize them")
//
// Ошибка планирования (*PlanningError) возвращается вызывающему и
// до движка не доходит.
//
// Summarizer описывает результат выполнения текстом модели, а без
// неё возвращает engine.Summarize.
package planner
