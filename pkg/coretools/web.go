package coretools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

const maxFetchBytes = 64 * 1024

// truncateAtRuneBoundary caps s at max bytes without splitting a rune
func truncateAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// HTTPGet fetches a URL over plain HTTP, without script execution
func HTTPGet() toolexecutor.ToolDefinition {
	client := &http.Client{Timeout: 15 * time.Second}

	return toolexecutor.ToolDefinition{
		Name:        "http_get",
		Description: "Fetch the raw body of an HTTP or HTTPS URL",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "url", Type: "string", Description: "Absolute http(s) URL to fetch", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			raw, ok := args["url"].(string)
			if !ok || raw == "" {
				return nil, fmt.Errorf("url must be a non-empty string")
			}

			parsed, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid url: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", "smithers/1.0")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}

			return string(body), nil
		},
	}
}

// WebPage renders a page in a headless browser and returns its visible
// text. Needed for script-heavy pages where http_get only sees markup.
func WebPage() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "web_page",
		Description: "Render a web page in a headless browser and return its visible text",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "url", Type: "string", Description: "Absolute http(s) URL to render", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			raw, ok := args["url"].(string)
			if !ok || raw == "" {
				return nil, fmt.Errorf("url must be a non-empty string")
			}

			parsed, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid url: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
			}

			browser := rod.New().Context(ctx)
			if err := browser.Connect(); err != nil {
				return nil, fmt.Errorf("failed to start browser: %w", err)
			}
			defer browser.Close()

			page, err := browser.Page(proto.TargetCreateTarget{URL: raw})
			if err != nil {
				return nil, fmt.Errorf("failed to open page: %w", err)
			}
			defer page.Close()

			if err := page.WaitLoad(); err != nil {
				return nil, fmt.Errorf("page failed to load: %w", err)
			}

			body, err := page.Element("body")
			if err != nil {
				return nil, fmt.Errorf("page has no body: %w", err)
			}

			text, err := body.Text()
			if err != nil {
				return nil, fmt.Errorf("failed to extract text: %w", err)
			}

			return truncateAtRuneBoundary(text, maxFetchBytes), nil
		},
	}
}
