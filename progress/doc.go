// Package progress prints live progress for ingestion and re-embedding runs.
package progress
