package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForEventStream wraps a compression middleware handler to
// skip compression when the client asks for text/event-stream. Streaming
// responses need unbuffered writes; compression middleware interferes with
// flushing.
func SkipCompressionForEventStream(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
				next.ServeHTTP(w, r)
				return
			}
			compressedHandler.ServeHTTP(w, r)
		})
	}
}
