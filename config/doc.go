// Package config loads application settings for the repoingest command.
//
// Settings come from three layers, highest precedence first:
//
//  1. Environment variables prefixed with REPOINGEST_
//  2. An optional YAML file
//  3. Built-in defaults
//
// Environment variables map onto YAML keys by dropping the prefix, lowercasing
// and splitting on the first underscore:
//
//	REPOINGEST_GITHUB_BASE_URL   -> github.base_url
//	REPOINGEST_INGEST_CHUNK_SIZE -> ingest.chunk_size
//	REPOINGEST_AI_EMBEDDING_HOST -> ai.embedding_host
//
// The GitHub credential additionally falls back to GITHUB_TOKEN.
//
// # Example
//
//	cfg, err := config.Load("repoingest.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := remote.NewClient(cfg.ClientOptions()...)
package config
