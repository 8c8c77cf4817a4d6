package middleware

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

// Compress gzips responses for clients that send Accept-Encoding: gzip.
// Bodies under minSize and image payloads pass through untouched.
func Compress(minSize int) (func(http.Handler) http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(minSize),
		gzhttp.ContentTypeFilter(compressible),
	)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}

// images are stored already encoded
func compressible(contentType string) bool {
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
