package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/ragent/domain/tool"
)

// DocumentFetchName is the registry name of the fetch tool.
const DocumentFetchName = "document_fetch"

const (
	// DefaultMaxBytes caps the fetched body.
	DefaultMaxBytes = 64 * 1024
	// DefaultFetchTimeout bounds one fetch.
	DefaultFetchTimeout = 15 * time.Second
)

// DocumentFetch retrieves documents over HTTP from allow-listed URL prefixes.
type DocumentFetch struct {
	allowed  []string
	maxBytes int64
	client   *http.Client
}

// NewDocumentFetch creates the fetch tool. An empty allow list rejects every URL.
func NewDocumentFetch(allowed []string, maxBytes int64, timeout time.Duration) *DocumentFetch {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &DocumentFetch{
		allowed:  allowed,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: timeout},
	}
}

type documentFetchArgs struct {
	URL string `json:"url"`
}

// Tool builds the registry entry for the fetch tool.
func (f *DocumentFetch) Tool() tool.Tool {
	return tool.NewBuilder(DocumentFetchName).
		WithDescription("Fetch the text of a document by URL. Only approved sources can be fetched: " +
			strings.Join(f.allowed, ", ")).
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"url": tool.Property("string", "absolute URL of the document"),
		}, []string{"url"})).
		ReadOnly().
		Idempotent().
		Cacheable().
		WithTags("retrieval", "http").
		WithHandler(f.handle).
		MustBuild()
}

func (f *DocumentFetch) permitted(url string) bool {
	for _, prefix := range f.allowed {
		if prefix != "" && strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

func (f *DocumentFetch) handle(ctx context.Context, input json.RawMessage) (tool.Result, error) {
	var args documentFetchArgs
	if err := decodeArgs(input, &args); err != nil {
		return tool.NewErrorResult(err), nil
	}
	if err := required("url", args.URL); err != nil {
		return tool.NewErrorResult(err), nil
	}
	if !f.permitted(args.URL) {
		return tool.NewErrorResult(fmt.Errorf("%w: %s", ErrNotAllowed, args.URL)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return tool.NewErrorResult(err), nil
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return tool.Result{}, fmt.Errorf("fetch %s: %w", args.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return tool.Result{}, fmt.Errorf("read %s: %w", args.URL, err)
	}
	if resp.StatusCode >= 500 {
		return tool.Result{}, fmt.Errorf("fetch %s: status %d", args.URL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return tool.NewErrorResult(fmt.Errorf("fetch %s: status %d", args.URL, resp.StatusCode)), nil
	}

	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		body = body[:f.maxBytes]
	}
	return tool.JSONResult(map[string]any{
		"content_type": resp.Header.Get("Content-Type"),
		"truncated":    truncated,
		"documents": []Document{{
			Content: string(body),
			Source:  args.URL,
			Title:   args.URL,
		}},
	})
}
