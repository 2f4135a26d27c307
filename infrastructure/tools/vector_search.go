package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// VectorSearchName is the registry name of the semantic search tool.
const VectorSearchName = "vector_search"

// DefaultTopK bounds vector search results when the caller gives no top_k.
const DefaultTopK = 5

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PointQuerier is the subset of the qdrant client the search tool uses.
type PointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// VectorSearchConfig configures the search tool.
type VectorSearchConfig struct {
	Collection     string
	TopK           int
	ScoreThreshold float32
}

// VectorSearch answers semantic queries against a qdrant collection.
type VectorSearch struct {
	client   PointQuerier
	embedder Embedder
	cfg      VectorSearchConfig
}

// NewVectorSearch creates the search tool over client and embedder.
func NewVectorSearch(client PointQuerier, embedder Embedder, cfg VectorSearchConfig) *VectorSearch {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &VectorSearch{client: client, embedder: embedder, cfg: cfg}
}

// NewQdrantClient connects to a qdrant server over gRPC.
func NewQdrantClient(host string, port int) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", host, port, err)
	}
	return client, nil
}

type vectorSearchArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Tool builds the registry entry for the search.
func (v *VectorSearch) Tool() tool.Tool {
	return tool.NewBuilder(VectorSearchName).
		WithDescription("Semantic search over the knowledge base. Returns the most relevant documents for a natural language query.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"query": tool.Property("string", "natural language search query"),
			"top_k": tool.Property("integer", "maximum number of documents to return"),
		}, []string{"query"})).
		ReadOnly().
		Cacheable().
		WithTags("retrieval").
		WithHandler(v.handle).
		MustBuild()
}

func (v *VectorSearch) handle(ctx context.Context, input json.RawMessage) (tool.Result, error) {
	var args vectorSearchArgs
	if err := decodeArgs(input, &args); err != nil {
		return tool.NewErrorResult(err), nil
	}
	if err := required("query", args.Query); err != nil {
		return tool.NewErrorResult(err), nil
	}

	docs, err := v.Search(ctx, args.Query, args.TopK)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.JSONResult(map[string]any{"documents": docs})
}

// Search embeds query and returns up to topK documents above the score threshold.
func (v *VectorSearch) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = v.cfg.TopK
	}

	vector, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: v.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if v.cfg.ScoreThreshold > 0 {
		threshold := v.cfg.ScoreThreshold
		req.ScoreThreshold = &threshold
	}

	points, err := v.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	docs := make([]Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, pointDocument(p))
	}

	logging.Debug().
		Add(logging.ToolName(VectorSearchName)).
		Add(logging.Int("documents", len(docs))).
		Msg("vector search completed")
	return docs, nil
}

func pointDocument(p *qdrant.ScoredPoint) Document {
	doc := Document{Score: float64(p.GetScore())}
	if id := p.GetId(); id != nil {
		if u := id.GetUuid(); u != "" {
			doc.ID = u
		} else {
			doc.ID = fmt.Sprintf("%d", id.GetNum())
		}
	}

	meta := convertPayload(p.GetPayload())
	for key, dst := range map[string]*string{"content": &doc.Content, "source": &doc.Source, "title": &doc.Title} {
		if s, ok := meta[key].(string); ok {
			*dst = s
			delete(meta, key)
		}
	}
	if len(meta) > 0 {
		doc.Metadata = meta
	}
	return doc
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, val := range payload {
		if v := convertValue(val); v != nil {
			out[key] = v
		}
	}
	return out
}

func convertValue(val *qdrant.Value) any {
	if val == nil {
		return nil
	}
	switch v := val.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(v.ListValue.GetValues()))
		for _, item := range v.ListValue.GetValues() {
			if c := convertValue(item); c != nil {
				list = append(list, c)
			}
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayload(v.StructValue.GetFields())
	}
	return nil
}
