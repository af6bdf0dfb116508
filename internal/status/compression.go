package status

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, that gets compressed.
	MinSize int
	// Types lists the media types that are compressed.
	Types []string
	// SkipPaths are served as is. /metrics negotiates its own encoding.
	SkipPaths []string
}

// DefaultCompressionConfig compresses JSON bodies of 1KB or more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:   1024,
		Types:     []string{"application/json", "text/plain"},
		SkipPaths: []string{"/metrics", "/ws/progress"},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

// gzipResponseWriter holds the body back until MinSize bytes have arrived
// or the handler returns, then commits to gzip or plain.
type gzipResponseWriter struct {
	http.ResponseWriter
	config    CompressionConfig
	buf       []byte
	status    int
	committed bool
	gz        *gzip.Writer
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if !g.committed {
		g.status = code
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if g.committed {
		if g.gz != nil {
			return g.gz.Write(b)
		}
		return g.ResponseWriter.Write(b)
	}
	g.buf = append(g.buf, b...)
	if len(g.buf) >= g.config.MinSize {
		if err := g.commit(); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (g *gzipResponseWriter) compressible() bool {
	mediaType, _, _ := strings.Cut(g.Header().Get("Content-Type"), ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, t := range g.config.Types {
		if mediaType == t {
			return true
		}
	}
	return false
}

func (g *gzipResponseWriter) commit() error {
	g.committed = true
	buf := g.buf
	g.buf = nil

	if len(buf) >= g.config.MinSize && g.compressible() {
		h := g.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		g.gz = gzipWriterPool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.status)
		_, err := g.gz.Write(buf)
		return err
	}

	g.ResponseWriter.WriteHeader(g.status)
	_, err := g.ResponseWriter.Write(buf)
	return err
}

func (g *gzipResponseWriter) Close() error {
	if !g.committed {
		if err := g.commit(); err != nil {
			return err
		}
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	gzipWriterPool.Put(g.gz)
	g.gz = nil
	return err
}

// Flush implements http.Flusher.
func (g *gzipResponseWriter) Flush() {
	if !g.committed {
		_ = g.commit()
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression gzips responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") ||
				r.Header.Get("Upgrade") != "" ||
				skipCompression(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{ResponseWriter: w, config: config, status: http.StatusOK}
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}

func skipCompression(path string, skip []string) bool {
	for _, p := range skip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
