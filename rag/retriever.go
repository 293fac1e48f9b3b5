package rag

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/embedding"
)

// KnowledgeChunk is a unit of knowledge stored in the Redis index.
type KnowledgeChunk struct {
	ID   string `json:"chunk_id"`
	Text string `json:"text"`
}

// RetrievedChunk is a search hit with its cosine similarity to the query.
type RetrievedChunk struct {
	ID         string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// RetrieverConfig configures the Redis knowledge retriever.
type RetrieverConfig struct {
	// IndexName is the RediSearch index; keys use IndexName + ":" as prefix.
	IndexName string `yaml:"index_name" json:"index_name"`

	// TopK is the default number of chunks returned per query.
	TopK int `yaml:"top_k" json:"top_k"`
}

// DefaultRetrieverConfig returns the default retriever configuration.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		IndexName: "iam_knowledge",
		TopK:      2,
	}
}

// Retriever performs KNN search over a Redis vector index. Embedding
// computation and the vector search itself are delegated; this type owns
// only key layout and result parsing.
type Retriever struct {
	client   *redis.Client
	embedder embedding.Provider
	cfg      RetrieverConfig
	logger   *zap.Logger
}

// NewRetriever creates a knowledge retriever.
func NewRetriever(client *redis.Client, embedder embedding.Provider, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "iam_knowledge"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	return &Retriever{
		client:   client,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "retriever")),
	}
}

func (r *Retriever) chunkKey(id string) string {
	return r.cfg.IndexName + ":" + id
}

// EnsureIndex creates the vector index if it does not exist yet.
// Schema: text (TEXT), chunk_id (TAG), embedding (FLAT float32 cosine).
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	err := r.client.FTCreate(ctx, r.cfg.IndexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{r.cfg.IndexName + ":"},
		},
		&redis.FieldSchema{FieldName: "text", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "chunk_id", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{
			FieldName: "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            r.embedder.Dimensions(),
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "Index already exists") {
			return nil
		}
		return fmt.Errorf("create knowledge index: %w", err)
	}

	r.logger.Info("knowledge index created",
		zap.String("index", r.cfg.IndexName),
		zap.Int("dims", r.embedder.Dimensions()))
	return nil
}

// Ingest embeds chunks and writes them as hashes under the index prefix.
func (r *Retriever) Ingest(ctx context.Context, chunks []KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	pipe := r.client.Pipeline()
	for i, c := range chunks {
		pipe.HSet(ctx, r.chunkKey(c.ID), map[string]interface{}{
			"text":      c.Text,
			"chunk_id":  c.ID,
			"embedding": encodeVector(vectors[i]),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}

	r.logger.Info("knowledge chunks ingested", zap.Int("count", len(chunks)))
	return nil
}

// Retrieve embeds the query and returns the topK nearest chunks. topK <= 0
// uses the configured default. Similarity is 1 - cosine distance.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	knn := fmt.Sprintf("(*)=>[KNN %d @embedding $vec AS vector_distance]", topK)
	res, err := r.client.FTSearchWithArgs(ctx, r.cfg.IndexName, knn, &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: "text"},
			{FieldName: "chunk_id"},
			{FieldName: "vector_distance"},
		},
		SortBy:         []redis.FTSearchSortBy{{FieldName: "vector_distance", Asc: true}},
		DialectVersion: 2,
		Params: map[string]interface{}{
			"vec": encodeVector(vectors[0]),
		},
		Limit: topK,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	chunks := make([]RetrievedChunk, 0, len(res.Docs))
	for _, doc := range res.Docs {
		distance, _ := strconv.ParseFloat(doc.Fields["vector_distance"], 64)
		chunks = append(chunks, RetrievedChunk{
			ID:         doc.Fields["chunk_id"],
			Text:       doc.Fields["text"],
			Similarity: 1 - distance,
		})
	}

	r.logger.Debug("knowledge retrieved",
		zap.String("query", truncateQuery(query)),
		zap.Int("hits", len(chunks)))
	return chunks, nil
}

// FormatContext renders retrieved chunks as a context block for the prompt.
func FormatContext(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

// encodeVector serializes a float32 vector in little-endian byte order,
// the layout RediSearch expects for FLOAT32 vector fields.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func truncateQuery(q string) string {
	if len(q) <= 50 {
		return q
	}
	return q[:50] + "..."
}
