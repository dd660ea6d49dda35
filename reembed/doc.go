// Package reembed recomputes the vectors of stored chunks, for instance after
// switching embedding models or after ingesting without an embedder.
//
// Chunks are read in batches, embedded with retry and exponential backoff,
// normalized to unit length and written back. Progress is reported through
// the progress package.
package reembed
