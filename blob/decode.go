package blob

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// binarySniffLen is how many leading bytes are checked for NUL.
const binarySniffLen = 2048

// DefaultEncodings are tried in order when decoding blob bytes.
var DefaultEncodings = []string{"utf-8", "iso-8859-1"}

// candidate is a text encoding to try. enc is nil for UTF-8.
type candidate struct {
	name string
	enc  encoding.Encoding
}

func resolveEncodings(names []string) ([]candidate, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no encodings given", ErrUnsupportedEncoding)
	}
	out := make([]candidate, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "utf-8", "utf8":
			out = append(out, candidate{name: "utf-8"})
			continue
		}
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
		}
		out = append(out, candidate{name: name, enc: enc})
	}
	return out, nil
}

// strict decodes raw only if every byte is valid in this encoding.
func (c candidate) strict(raw []byte) (string, bool) {
	if c.enc == nil {
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	}
	out, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// lossy decodes raw, substituting U+FFFD for anything unrepresentable.
func (c candidate) lossy(raw []byte) string {
	if c.enc != nil {
		if out, err := c.enc.NewDecoder().Bytes(raw); err == nil {
			return strings.ToValidUTF8(string(out), "\uFFFD")
		}
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

// decodeContent turns a blob payload into text. Payloads that are not base64
// are already text and come back unchanged.
func decodeContent(content, contentEncoding string, candidates []candidate) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrDecodeFailure, r)
		}
	}()

	if contentEncoding != "base64" {
		if content == "" {
			return "", ErrEmpty
		}
		return content, nil
	}

	raw, err := decodeBase64(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if len(raw) == 0 {
		return "", ErrEmpty
	}
	if bytes.IndexByte(raw[:min(len(raw), binarySniffLen)], 0) >= 0 {
		return "", ErrBinary
	}

	for _, c := range candidates {
		if s, ok := c.strict(raw); ok {
			return s, nil
		}
	}
	return candidates[0].lossy(raw), nil
}

// decodeBase64 decodes the line-wrapped, sometimes unpadded base64 the API returns.
func decodeBase64(content string) ([]byte, error) {
	s := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}
