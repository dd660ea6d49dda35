// Package chunk splits decoded file text into overlapping chunks.
//
// Sizes are measured in characters (runes), never bytes, so multi-byte text
// is never cut inside a code point. Each chunk ends at the best natural
// boundary found within a small window around its tentative end: a paragraph
// break first, then the end of a sentence, then a line break, then a space.
// Consecutive chunks share up to Overlap characters so context spanning a
// boundary survives in at least one chunk.
//
// The bound is inclusive. Each chunk after the first starts Overlap
// characters before the previous cut, so two neighbours usually share exactly
// Overlap characters. They share fewer only when that start would not move
// past the previous one, or when whitespace at a chunk edge is trimmed.
package chunk
