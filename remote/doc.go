// Package remote is a resilient client for the GitHub REST API.
//
// Every request goes through Client.Fetch, which retries with exponential
// backoff, waits out rate limits using the X-RateLimit-Reset and Retry-After
// headers, and fails fast on 404. Connections to the API host are capped and
// requests can optionally be paced client side.
//
// Only the read operations needed for ingestion are exposed:
//   - GetRepository: repository metadata and reachability
//   - ListTree: recursive tree listing of a branch
//   - GetBlob: a single blob by SHA
package remote
