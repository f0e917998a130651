package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolshelf/resilience"
)

// Source loads the tool list.
type Source interface {
	Load(ctx context.Context) ([]Tool, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Tool, error)

func (f SourceFunc) Load(ctx context.Context) ([]Tool, error) { return f(ctx) }

// Format is a tool list encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks a format from a path or URL extension, falling back to
// contentType. JSON is the default.
func FormatFor(name, contentType string) Format {
	if u, _, ok := strings.Cut(name, "?"); ok {
		name = u
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	if strings.Contains(strings.ToLower(contentType), "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// Decode reads a list of tools from r and validates it.
func Decode(r io.Reader, format Format) ([]Tool, error) {
	var tools []Tool
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&tools); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog: decode yaml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&tools); err != nil {
			return nil, fmt.Errorf("catalog: decode json: %w", err)
		}
	}
	if err := Validate(tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// HTTPSource fetches the tool list with a GET. The client's transport may be
// the offline registration, in which case the request is served from cache
// when possible.
type HTTPSource struct {
	url     string
	client  *http.Client
	timeout *resilience.Timeout
}

// NewHTTPSource creates an HTTPSource. A nil client means
// http.DefaultClient; a non-positive timeout means the resilience default.
func NewHTTPSource(url string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		url:     url,
		client:  client,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: timeout}),
	}
}

// URL returns the catalog address.
func (s *HTTPSource) URL() string { return s.url }

func (s *HTTPSource) Load(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	err := s.timeout.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return fmt.Errorf("catalog: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("catalog: fetch %s: %w", s.url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, s.url, resp.StatusCode)
		}

		tools, err = Decode(resp.Body, FormatFor(s.url, resp.Header.Get("Content-Type")))
		return err
	})
	return tools, err
}

// FileSource reads the tool list from a local .json, .yaml or .yml file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", s.Path, err)
	}
	defer f.Close()

	tools, err := Decode(f, FormatFor(s.Path, ""))
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", s.Path, err)
	}
	return tools, nil
}
