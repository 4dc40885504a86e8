// Package main provides the docgraph CLI: knowledge-graph ingestion and
// question answering over a document corpus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/docgraph/internal/config"
	"github.com/bull/docgraph/internal/docs"
	"github.com/bull/docgraph/internal/embedding"
	"github.com/bull/docgraph/internal/extract"
	"github.com/bull/docgraph/internal/graph"
	"github.com/bull/docgraph/internal/ingest"
	"github.com/bull/docgraph/internal/llm"
	"github.com/bull/docgraph/internal/rag"
	"github.com/bull/docgraph/internal/retrieval"
	"github.com/bull/docgraph/internal/splitter"
)

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "Knowledge-graph RAG over a document corpus",
	Long:  "Ingests documents into a Neo4j knowledge graph and answers questions over it",
}

var buildCmd = &cobra.Command{
	Use:   "build <dir>",
	Short: "Ingest a directory of documents into the knowledge graph",
	Long: `Loads .txt and .md files, splits them into chunks, embeds each chunk,
extracts typed entities and relationships, and writes everything to Neo4j.
Re-running over the same corpus is idempotent.

Environment variables:
  MODEL_BACKEND   ollama or openai (default: ollama)
  OLLAMA_SERVER   Ollama base URL (default: http://localhost:11434)
  OPENAI_API_KEY  API key for the openai backend
  LLM_MODEL       chat model for extraction and answering
  EMBEDDING_MODEL embedding model
  NEO4J_URI       Bolt URI (default: bolt://localhost:7687)
  NEO4J_USERNAME  database user (default: neo4j)
  NEO4J_PASSWORD  database password`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var (
	askStrategy string
	askTopK     int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question using the knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the configured backend",
	RunE:  runModels,
}

func init() {
	askCmd.Flags().StringVar(&askStrategy, "strategy", string(retrieval.StrategyVector),
		"retrieval strategy: vector, vector_traversal, hybrid, hybrid_traversal, text2query")
	askCmd.Flags().IntVar(&askTopK, "top-k", 5, "number of context chunks to retrieve")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}

	client, err := newModelClient(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to Neo4j at %s...\n", cfg.Neo4jURI)
	store, err := graph.NewStore(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return fmt.Errorf("Failed to connect to Neo4j: %w", err)
	}
	defer store.Close(ctx)
	fmt.Println("Neo4j reachable")

	writer := graph.NewWriter(store, graph.WriterConfig{
		VectorIndex:       cfg.VectorIndexName,
		FulltextIndex:     cfg.FulltextIndexName,
		VectorDimension:   cfg.VectorDimension,
		SimilarityMetric:  cfg.SimilarityMetric,
		NodeTypes:         cfg.NodeTypes,
		RelationshipTypes: cfg.RelationshipTypes,
	})

	logger := slog.Default()
	pipeline := ingest.NewPipeline(
		docs.NewLoader(logger),
		splitter.New(cfg.ChunkSeparator, cfg.ChunkSize, cfg.ChunkOverlap),
		embedding.NewProvider(client, cfg.VectorDimension),
		extract.NewExtractor(client, cfg.NodeTypes, cfg.RelationshipTypes, logger),
		writer,
		logger,
		cfg.IngestWorkers,
	)

	fmt.Println()
	fmt.Printf("Ingesting documents from %s...\n", args[0])
	result, err := pipeline.Run(ctx, args[0])
	if err != nil {
		return fmt.Errorf("Ingestion failed: %w", err)
	}

	counts, err := writer.Count(ctx)
	if err != nil {
		return fmt.Errorf("Failed to read graph counts: %w", err)
	}

	fmt.Println()
	fmt.Println("Build complete!")
	fmt.Printf("  Chunks: %d/%d\n", result.Succeeded, result.TotalChunks)
	fmt.Printf("  Nodes: %d\n", counts.Nodes)
	fmt.Printf("  Relationships: %d\n", counts.Relationships)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed chunks:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.ChunkID, failed.Err)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}

	strategy, err := retrieval.ParseStrategy(askStrategy)
	if err != nil {
		return err
	}

	client, err := newModelClient(cfg)
	if err != nil {
		return err
	}

	store, err := graph.NewStore(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return fmt.Errorf("Failed to connect to Neo4j: %w", err)
	}
	defer store.Close(ctx)

	provider := embedding.NewProvider(client, cfg.VectorDimension)
	retriever, err := retrieval.New(strategy, store, provider, client, retrieval.Options{
		VectorIndex:   cfg.VectorIndexName,
		FulltextIndex: cfg.FulltextIndexName,
		Schema:        retrieval.DefaultSchema,
		Logger:        slog.Default(),
	})
	if err != nil {
		return err
	}

	answer, err := rag.New(retriever, client, slog.Default()).Answer(ctx, args[0], askTopK)
	if err != nil {
		return fmt.Errorf("Failed to answer: %w", err)
	}

	fmt.Println(answer)
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}

	client, err := newModelClient(cfg)
	if err != nil {
		return err
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("Failed to list models: %w", err)
	}

	if len(models) == 0 {
		fmt.Println("No models available")
		return nil
	}
	for _, m := range models {
		fmt.Println(m.Name)
	}
	return nil
}

func newModelClient(cfg *config.Config) (llm.Client, error) {
	llmCfg := llm.Config{
		ChatModel:   cfg.ChatModel,
		EmbedModel:  cfg.EmbedModel,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
	}
	switch cfg.ModelBackend {
	case config.BackendOllama:
		llmCfg.BaseURL = cfg.OllamaServer
		return llm.NewOllama(llmCfg), nil
	case config.BackendOpenAI:
		llmCfg.BaseURL = cfg.OpenAIBaseURL
		llmCfg.APIKey = cfg.OpenAIAPIKey
		return llm.NewOpenAI(llmCfg), nil
	}
	return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
}
