package functions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/shaiso/Sequencer/internal/domain"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// sanitizePolicy возвращает общую политику, удаляющую весь HTML.
func sanitizePolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

func (l *library) webFunctions() []domain.FunctionSpec {
	return []domain.FunctionSpec{
		{
			Name:        "check_url_status",
			Description: "Check the HTTP status of a URL",
			Inputs:      []domain.Param{in("url", domain.TypeString, "URL to check")},
			Outputs: []domain.Field{
				out("status_code", domain.TypeInteger, "HTTP status code"),
				out("ok", domain.TypeBoolean, "Whether the status is below 400"),
				out("url", domain.TypeString, "Checked URL"),
			},
			Impl: l.checkURLStatus,
		},
		{
			Name:        "extract_domain",
			Description: "Extract the host name from a URL",
			Inputs:      []domain.Param{in("url", domain.TypeString, "URL")},
			Outputs:     []domain.Field{out("domain", domain.TypeString, "Host name")},
			Impl:        extractDomain,
		},
		{
			Name:        "web_summarizer",
			Description: "Fetch a web page and summarize its main content",
			Inputs: []domain.Param{
				in("url", domain.TypeString, "Page URL"),
				optional("max_length", domain.TypeInteger, "Maximum summary length in characters", domain.Int(defaultSummaryLength)),
			},
			Outputs: []domain.Field{
				out("title", domain.TypeString, "Page title"),
				out("summary", domain.TypeString, "Beginning of the main text"),
				out("excerpt", domain.TypeString, "Page excerpt"),
				out("url", domain.TypeString, "Fetched URL"),
			},
			Impl: l.webSummarizer,
		},
	}
}

func (l *library) checkURLStatus(ctx context.Context, args domain.Args) (domain.Value, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return domain.Value{}, err
	}

	code, err := l.status(ctx, http.MethodHead, rawURL)
	if err == nil && code == http.StatusMethodNotAllowed {
		code, err = l.status(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return domain.Value{}, err
	}

	return record(map[string]any{
		"status_code": code,
		"ok":          code < 400,
		"url":         rawURL,
	})
}

func (l *library) status(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.deps.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func extractDomain(_ context.Context, args domain.Args) (domain.Value, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return domain.Value{}, err
	}
	host, err := hostOf(rawURL)
	if err != nil || host == "" {
		return domain.Value{}, &ArgError{Param: "url", Want: "URL with a host", Got: fmt.Sprintf("%q", rawURL)}
	}
	return record(map[string]any{"domain": host})
}

func (l *library) webSummarizer(ctx context.Context, args domain.Args) (domain.Value, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return domain.Value{}, err
	}
	maxLength, err := intArg(args, "max_length")
	if err != nil {
		return domain.Value{}, err
	}
	if maxLength <= 0 {
		maxLength = defaultSummaryLength
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return domain.Value{}, &ArgError{Param: "url", Want: "URL", Got: fmt.Sprintf("%q", rawURL)}
	}

	resp, err := l.get(ctx, rawURL)
	if err != nil {
		return domain.Value{}, err
	}
	defer resp.Body.Close()

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return domain.Value{}, fmt.Errorf("parse article: %w", err)
	}

	policy := sanitizePolicy()
	text := collapseSpaces(policy.Sanitize(article.TextContent))

	return record(map[string]any{
		"title":   strings.TrimSpace(policy.Sanitize(article.Title)),
		"summary": clip(text, maxLength),
		"excerpt": collapseSpaces(policy.Sanitize(article.Excerpt)),
		"url":     rawURL,
	})
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip обрезает текст до n рун, добавляя многоточие.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
