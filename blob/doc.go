// Package blob fetches repository blobs and decodes them to text.
//
// Blobs above the size cap are rejected before any request is made. Base64
// payloads are decoded, sniffed for binary content and then decoded with the
// first candidate character encoding that accepts every byte, falling back to
// a lossy decode with the first candidate. Decoded text is cached by blob SHA
// so a file duplicated across paths is fetched once.
package blob
