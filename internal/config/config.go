// Package config reads the environment-driven runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names a model server protocol.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
)

// Config is the full runtime configuration. Loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	// Model backend
	ModelBackend   Backend
	OllamaServer   string
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	ChatModel      string
	EmbedModel     string
	Temperature    float64
	RequestTimeout time.Duration

	// Graph database
	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// Indexes
	VectorDimension   int
	SimilarityMetric  string
	VectorIndexName   string
	FulltextIndexName string

	// Chunking
	ChunkSeparator string
	ChunkSize      int
	ChunkOverlap   int

	// Ingestion
	IngestWorkers int

	// Extraction allow-lists
	NodeTypes         []string
	RelationshipTypes []string
}

// Load reads configuration from the environment, applying defaults for
// everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		ModelBackend:   Backend(getEnv("MODEL_BACKEND", string(BackendOllama))),
		OllamaServer:   getEnv("OLLAMA_SERVER", "http://localhost:11434"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		ChatModel:      getEnv("LLM_MODEL", "llama3.1"),
		EmbedModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECS", 60)) * time.Second,

		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),

		VectorDimension:   getEnvInt("VECTOR_DIMENSION", 768),
		SimilarityMetric:  getEnv("SIMILARITY_METRIC", "cosine"),
		VectorIndexName:   getEnv("VECTOR_INDEX_NAME", "chunkVector"),
		FulltextIndexName: getEnv("FULLTEXT_INDEX_NAME", "chunkText"),

		ChunkSeparator: getEnv("CHUNK_SEPARATOR", "\n\n"),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 1500),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),

		IngestWorkers: getEnvInt("INGEST_WORKERS", 4),

		NodeTypes: getEnvList("NODE_TYPES",
			[]string{"Technology", "Concept", "Skill", "Event", "Person", "Object"}),
		RelationshipTypes: getEnvList("RELATIONSHIP_TYPES",
			[]string{"USES", "HAS", "IS", "AT", "KNOWS"}),
	}

	temperature, err := getEnvFloat("LLM_TEMPERATURE", 0)
	if err != nil {
		return nil, err
	}
	cfg.Temperature = temperature

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.ModelBackend {
	case BackendOllama:
		if c.OllamaServer == "" {
			return fmt.Errorf("OLLAMA_SERVER is required for the ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
		}
	default:
		return fmt.Errorf("unknown MODEL_BACKEND %q (want ollama or openai)", c.ModelBackend)
	}

	if c.ChatModel == "" || c.EmbedModel == "" {
		return fmt.Errorf("LLM_MODEL and EMBEDDING_MODEL must be set")
	}
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	switch strings.ToLower(c.SimilarityMetric) {
	case "cosine", "euclidean":
	default:
		return fmt.Errorf("SIMILARITY_METRIC must be cosine or euclidean, got %q", c.SimilarityMetric)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.IngestWorkers)
	}
	if len(c.NodeTypes) == 0 || len(c.RelationshipTypes) == 0 {
		return fmt.Errorf("NODE_TYPES and RELATIONSHIP_TYPES must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
