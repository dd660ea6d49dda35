// Package ingestion turns a GitHub repository into chunks delivered to a Sink.
//
// A Pipeline run:
//   - checks the repository is reachable and resolves the branch
//   - lists the tree recursively and filters it to text files
//   - fetches, decodes and chunks each file on a bounded worker pool
//   - hands every chunk to the Sink under its stable ID
//
// Files are independent: a file that cannot be fetched or stored is recorded
// as failed and the run continues. The returned IngestionReport accounts for
// every filtered file exactly once.
package ingestion
