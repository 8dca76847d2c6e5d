package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Built-in tools: sandboxed file access, web search, URL fetch, and push
// notification. Each constructor returns plain Tool values so callers can
// register a subset or wrap them before registration.

// FileTools returns read_file, write_file, and list_directory, all
// confined to root. Paths are rejected unless they stay inside the
// sandbox after cleaning; absolute paths and ".." escapes never reach
// the filesystem.
func FileTools(root string) []Tool {
	return []Tool{
		{
			Name:        "read_file",
			Description: "Read a file from the working directory and return its contents",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the working directory"}
				},
				"required": ["path"],
				"additionalProperties": false
			}`),
			Exec: func(ctx context.Context, args map[string]any) (any, error) {
				path, err := sandboxPath(root, stringArg(args, "path"))
				if err != nil {
					return nil, err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, err
				}
				return string(data), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Write text to a file in the working directory, creating parent directories as needed",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the working directory"},
					"content": {"type": "string", "description": "Text to write"}
				},
				"required": ["path", "content"],
				"additionalProperties": false
			}`),
			Exec: func(ctx context.Context, args map[string]any) (any, error) {
				path, err := sandboxPath(root, stringArg(args, "path"))
				if err != nil {
					return nil, err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return nil, err
				}
				content := stringArg(args, "content")
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return nil, err
				}
				return fmt.Sprintf("wrote %d bytes to %s", len(content), stringArg(args, "path")), nil
			},
		},
		{
			Name:        "list_directory",
			Description: "List the files and directories under a path in the working directory",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Directory path relative to the working directory; defaults to the root"}
				},
				"additionalProperties": false
			}`),
			Exec: func(ctx context.Context, args map[string]any) (any, error) {
				rel := stringArg(args, "path")
				if rel == "" {
					rel = "."
				}
				path, err := sandboxPath(root, rel)
				if err != nil {
					return nil, err
				}
				entries, err := os.ReadDir(path)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					name := e.Name()
					if e.IsDir() {
						name += "/"
					}
					names = append(names, name)
				}
				sort.Strings(names)
				return strings.Join(names, "\n"), nil
			},
		},
	}
}

// sandboxPath resolves rel inside root, rejecting anything that would
// land outside it.
func sandboxPath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	cleaned := filepath.Clean(rel)
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("path escapes the working directory: %s", rel)
	}
	return filepath.Join(root, cleaned), nil
}

// SearchConfig configures the web_search tool. The zero value reads the
// API key from SERPER_API_KEY at call time.
type SearchConfig struct {
	// APIKey authorizes requests; falls back to SERPER_API_KEY.
	APIKey string

	// Endpoint overrides the search API URL, mainly for tests.
	Endpoint string

	// MaxResults caps the organic results returned. Default 5.
	MaxResults int

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

const defaultSearchEndpoint = "https://google.serper.dev/search"

// WebSearchTool returns a tool that runs a Google search through the
// Serper API and renders the organic results as titled snippets.
func WebSearchTool(cfg SearchConfig) Tool {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultSearchEndpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}

	return Tool{
		Name:        "web_search",
		Description: "Use this tool when you want to get the results of an online web search",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
		Exec: func(ctx context.Context, args map[string]any) (any, error) {
			apiKey := cfg.APIKey
			if apiKey == "" {
				apiKey = os.Getenv("SERPER_API_KEY")
			}
			if apiKey == "" {
				return nil, fmt.Errorf("web search is not configured: missing SERPER_API_KEY")
			}

			payload, err := json.Marshal(map[string]string{"q": stringArg(args, "query")})
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, strings.NewReader(string(payload)))
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-API-KEY", apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := cfg.HTTPClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, fmt.Errorf("search request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}

			var decoded struct {
				Organic []struct {
					Title   string `json:"title"`
					Link    string `json:"link"`
					Snippet string `json:"snippet"`
				} `json:"organic"`
			}
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, fmt.Errorf("decode search response: %w", err)
			}
			if len(decoded.Organic) == 0 {
				return "no results found", nil
			}

			var b strings.Builder
			for i, r := range decoded.Organic {
				if i >= cfg.MaxResults {
					break
				}
				fmt.Fprintf(&b, "%s\n%s\n%s\n\n", r.Title, r.Link, r.Snippet)
			}
			return strings.TrimSpace(b.String()), nil
		},
	}
}

// FetchConfig configures the fetch_url tool.
type FetchConfig struct {
	// MaxBytes caps how much of the response body is read. Default 1 MiB.
	MaxBytes int64

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// FetchURLTool returns a tool that retrieves a URL over HTTP(S) and
// returns the response body as text.
func FetchURLTool(cfg FetchConfig) Tool {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1 << 20
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return Tool{
		Name:        "fetch_url",
		Description: "Fetch the contents of a web page or API endpoint by URL",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Absolute http or https URL to fetch"}
			},
			"required": ["url"],
			"additionalProperties": false
		}`),
		Exec: func(ctx context.Context, args map[string]any) (any, error) {
			target := stringArg(args, "url")
			parsed, err := url.Parse(target)
			if err != nil {
				return nil, fmt.Errorf("invalid url: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return nil, fmt.Errorf("unsupported url scheme: %q", parsed.Scheme)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return nil, err
			}
			resp, err := cfg.HTTPClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxBytes))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, fmt.Errorf("fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}
			return string(raw), nil
		},
	}
}

// PushConfig configures the send_push_notification tool. The zero value
// reads credentials from PUSHOVER_TOKEN and PUSHOVER_USER at call time.
type PushConfig struct {
	// Token is the Pushover application token; falls back to PUSHOVER_TOKEN.
	Token string

	// User is the Pushover user key; falls back to PUSHOVER_USER.
	User string

	// Endpoint overrides the Pushover messages URL, mainly for tests.
	Endpoint string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

const defaultPushEndpoint = "https://api.pushover.net/1/messages.json"

// PushTool returns a tool that sends a push notification to the user
// through Pushover.
func PushTool(cfg PushConfig) Tool {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultPushEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return Tool{
		Name:        "send_push_notification",
		Description: "Use this tool when you want to send a push notification",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string", "description": "Notification text to send"}
			},
			"required": ["message"],
			"additionalProperties": false
		}`),
		Exec: func(ctx context.Context, args map[string]any) (any, error) {
			token := cfg.Token
			if token == "" {
				token = os.Getenv("PUSHOVER_TOKEN")
			}
			user := cfg.User
			if user == "" {
				user = os.Getenv("PUSHOVER_USER")
			}
			if token == "" || user == "" {
				return nil, fmt.Errorf("push notifications are not configured: missing PUSHOVER_TOKEN or PUSHOVER_USER")
			}

			form := url.Values{
				"token":   {token},
				"user":    {user},
				"message": {stringArg(args, "message")},
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := cfg.HTTPClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, fmt.Errorf("push failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}
			return "success", nil
		},
	}
}

// stringArg reads a string argument, tolerating absence.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
