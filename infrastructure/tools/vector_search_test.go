package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

type fakeQuerier struct {
	points []*qdrant.ScoredPoint
	err    error
	last   *qdrant.QueryPoints
}

func (f *fakeQuerier) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.last = req
	return f.points, f.err
}

func str(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func TestVectorSearch_Search(t *testing.T) {
	t.Parallel()

	querier := &fakeQuerier{points: []*qdrant.ScoredPoint{
		{
			Id:    &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: 7}},
			Score: 0.875,
			Payload: map[string]*qdrant.Value{
				"content":  str("Go is open source."),
				"source":   str("go.dev/doc"),
				"title":    str("Docs"),
				"category": str("language"),
				"year":     {Kind: &qdrant.Value_IntegerValue{IntegerValue: 2009}},
			},
		},
		{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "5c56c793-69f3-4fbf-87e6-c4bf54c28c26"}},
			Score:   0.5,
			Payload: map[string]*qdrant.Value{"content": str("second")},
		},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	vs := NewVectorSearch(querier, embedder, VectorSearchConfig{Collection: "kb", ScoreThreshold: 0.4})

	docs, err := vs.Search(context.Background(), "what is go?", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(embedder.texts) != 1 || embedder.texts[0] != "what is go?" {
		t.Errorf("embedded %v", embedder.texts)
	}
	if querier.last.GetCollectionName() != "kb" {
		t.Errorf("collection = %s, want kb", querier.last.GetCollectionName())
	}
	if querier.last.GetLimit() != DefaultTopK {
		t.Errorf("limit = %d, want %d", querier.last.GetLimit(), DefaultTopK)
	}
	if querier.last.GetScoreThreshold() != 0.4 {
		t.Errorf("score threshold = %v, want 0.4", querier.last.GetScoreThreshold())
	}

	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	first := docs[0]
	if first.ID != "7" || first.Content != "Go is open source." || first.Source != "go.dev/doc" || first.Title != "Docs" {
		t.Errorf("docs[0] = %+v", first)
	}
	if first.Score != 0.875 {
		t.Errorf("Score = %v, want 0.875", first.Score)
	}
	if first.Metadata["category"] != "language" || first.Metadata["year"] != int64(2009) {
		t.Errorf("Metadata = %v", first.Metadata)
	}
	if _, leaked := first.Metadata["content"]; leaked {
		t.Error("content duplicated into metadata")
	}
	if docs[1].ID != "5c56c793-69f3-4fbf-87e6-c4bf54c28c26" || docs[1].Metadata != nil {
		t.Errorf("docs[1] = %+v", docs[1])
	}
}

func TestVectorSearch_Tool(t *testing.T) {
	t.Parallel()

	querier := &fakeQuerier{}
	vs := NewVectorSearch(querier, &fakeEmbedder{vector: []float32{1}}, VectorSearchConfig{Collection: "kb", TopK: 3})
	tl := vs.Tool()

	if tl.Name() != VectorSearchName || !tl.Annotations().CanCache() {
		t.Errorf("tool = %s annotations %+v", tl.Name(), tl.Annotations())
	}

	result, err := tl.Execute(context.Background(), json.RawMessage(`{"query":"go","top_k":2}`))
	if err != nil || result.IsError() {
		t.Fatalf("Execute() = %+v, %v", result, err)
	}
	if querier.last.GetLimit() != 2 {
		t.Errorf("limit = %d, want 2", querier.last.GetLimit())
	}
	if querier.last.ScoreThreshold != nil {
		t.Error("score threshold sent when unset")
	}
	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(result.Output, &out); err != nil || out.Documents == nil {
		t.Errorf("Output = %s, want documents array", result.Output)
	}

	result, err = tl.Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
	if err != nil || !errors.Is(result.Error, ErrMissingArgument) {
		t.Errorf("blank query = %+v, %v, want ErrMissingArgument", result, err)
	}
}

func TestVectorSearch_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		embedder *fakeEmbedder
		querier  *fakeQuerier
	}{
		{"embedding", &fakeEmbedder{err: errors.New("model missing")}, &fakeQuerier{}},
		{"qdrant", &fakeEmbedder{vector: []float32{1}}, &fakeQuerier{err: errors.New("unavailable")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vs := NewVectorSearch(tt.querier, tt.embedder, VectorSearchConfig{Collection: "kb"})
			if _, err := vs.Tool().Execute(context.Background(), json.RawMessage(`{"query":"go"}`)); err == nil {
				t.Error("Execute() error = nil, want failure")
			}
		})
	}
}
