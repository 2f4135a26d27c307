package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr error
	}{
		{"ok", http.StatusOK, `{"embedding":[0.1,0.2,0.3]}`, 3, nil},
		{"empty", http.StatusOK, `{"embedding":[]}`, 0, ErrEmptyEmbedding},
		{"server error", http.StatusInternalServerError, `model not found`, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got embeddingRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/embeddings" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			vec, err := NewOllamaEmbedder(server.URL, "", 0).Embed(context.Background(), "hello")

			if got.Model != DefaultEmbeddingModel || got.Prompt != "hello" {
				t.Errorf("request = %+v", got)
			}
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Embed() error = %v, want %v", err, tt.wantErr)
				}
			case tt.status != http.StatusOK:
				if err == nil {
					t.Error("Embed() error = nil, want status error")
				}
			default:
				if err != nil || len(vec) != tt.want {
					t.Errorf("Embed() = %v, %v", vec, err)
				}
			}
		})
	}
}
