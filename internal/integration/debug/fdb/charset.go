package fdb

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LookupCharset returns the encoding registered under an IANA name.
// An empty name selects UTF-8.
func LookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownCharset, name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w %q: not supported", ErrUnknownCharset, name)
	}
	return enc, nil
}

// DecodeReader wraps r so that bytes in enc are decoded to UTF-8.
func DecodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil || enc == unicode.UTF8 {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}

// EncodeWriter wraps w so that UTF-8 text is written in enc.
func EncodeWriter(w io.Writer, enc encoding.Encoding) io.Writer {
	if enc == nil || enc == unicode.UTF8 {
		return w
	}
	return transform.NewWriter(w, enc.NewEncoder())
}
