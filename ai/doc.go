// Package ai provides the embedding abstraction used to vectorize stored chunks
// and search queries.
//
// Embedder generates vectors from text. AIProvider owns an Embedder and its
// lifecycle so callers can swap implementations without touching the store.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible endpoints (Ollama, LocalAI, vLLM, OpenAI)
//   - ai/mock: deterministic test doubles
//
// Production constructors return interfaces. Mock constructors return
// concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "func main() {}")
package ai
