// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from a hash of the
// input text, so tests run without an embedding service. Behavior can be
// overridden through the EmbedTextFunc and EmbedTextsFunc fields, and
// CallCount reports how often the embedder was used.
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
package mock
