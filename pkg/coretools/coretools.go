// Package coretools provides the builtin tools registered at startup:
// arithmetic, clock, weather, workspace file reads, and web fetching.
package coretools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

// Options configures the builtin tool set
type Options struct {
	// WorkspaceDir is the root read_file may serve from. Empty
	// disables the tool.
	WorkspaceDir string

	// EnableBrowser registers the web_page tool, which needs a
	// local Chromium.
	EnableBrowser bool
}

// RegisterAll registers every builtin tool on the executor
func RegisterAll(te *toolexecutor.ToolExecutor, opts Options) error {
	defs := []toolexecutor.ToolDefinition{
		Calculator(),
		CurrentTime(),
		GetWeather(),
		HTTPGet(),
	}

	if opts.WorkspaceDir != "" {
		defs = append(defs, ReadFile(opts.WorkspaceDir))
	}
	if opts.EnableBrowser {
		defs = append(defs, WebPage())
	}

	for _, def := range defs {
		if err := te.RegisterTool(def); err != nil {
			return fmt.Errorf("failed to register %s: %w", def.Name, err)
		}
	}

	return nil
}

// Calculator performs basic arithmetic on two operands
func Calculator() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "calculator",
		Description: "Perform basic arithmetic: add, sub, mul, div",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "op", Type: "string", Description: "Operation: add, sub, mul or div", Required: true},
			{Name: "a", Type: "number", Description: "First operand", Required: true},
			{Name: "b", Type: "number", Description: "Second operand", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, ok := args["a"].(float64)
			if !ok {
				return nil, fmt.Errorf("operand a must be a number")
			}
			b, ok := args["b"].(float64)
			if !ok {
				return nil, fmt.Errorf("operand b must be a number")
			}

			switch args["op"] {
			case "add":
				return formatNumber(a + b), nil
			case "sub":
				return formatNumber(a - b), nil
			case "mul":
				return formatNumber(a * b), nil
			case "div":
				if b == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return formatNumber(a / b), nil
			default:
				return nil, fmt.Errorf("unsupported op: %v", args["op"])
			}
		},
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// CurrentTime reports the current time, optionally in a named zone
func CurrentTime() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "current_time",
		Description: "Get the current date and time, optionally in a specific IANA timezone",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "timezone", Type: "string", Description: "IANA timezone name, e.g. Asia/Tokyo", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			loc := time.Local
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone: %s", tz)
				}
				loc = parsed
			}
			return time.Now().In(loc).Format(time.RFC3339), nil
		},
	}
}

// GetWeather reports the weather for a location. The answer is canned;
// there is no upstream weather service wired in yet.
func GetWeather() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "get_weather",
		Description: "Get the current weather in a given location",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "location", Type: "string", Description: "The city and state, e.g. San Francisco, CA", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			location, ok := args["location"].(string)
			if !ok || location == "" {
				return nil, fmt.Errorf("location must be a non-empty string")
			}
			return fmt.Sprintf("The weather in %s is sunny.", location), nil
		},
	}
}

// ReadFile reads a file from inside the workspace root. Paths that
// escape the root are rejected.
func ReadFile(root string) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "read_file",
		Description: "Read a text file from the workspace",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Path relative to the workspace root", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			rel, ok := args["path"].(string)
			if !ok || rel == "" {
				return nil, fmt.Errorf("path must be a non-empty string")
			}

			absRoot, err := filepath.Abs(root)
			if err != nil {
				return nil, fmt.Errorf("invalid workspace root: %w", err)
			}

			target := filepath.Join(absRoot, filepath.Clean("/"+rel))
			if target != absRoot && !strings.HasPrefix(target, absRoot+string(filepath.Separator)) {
				return nil, fmt.Errorf("path escapes workspace: %s", rel)
			}

			info, err := os.Stat(target)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", rel, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", rel)
			}
			if info.Size() > 256*1024 {
				return nil, fmt.Errorf("%s is too large (%d bytes)", rel, info.Size())
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", rel, err)
			}

			return string(data), nil
		},
	}
}
