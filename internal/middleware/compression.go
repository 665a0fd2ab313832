package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

var (
	gzipPool = sync.Pool{New: func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return gz
	}}
	brotliPool = sync.Pool{New: func() interface{} {
		return brotli.NewWriterLevel(io.Discard, 5)
	}}
)

// negotiateEncoding picks br over gzip from an Accept-Encoding header.
// Entries with q=0 are refused.
func negotiateEncoding(header string) string {
	var br, gz bool
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q := strings.ReplaceAll(params, " ", ""); q == "q=0" || q == "q=0.0" || q == "q=0.00" || q == "q=0.000" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	default:
		return ""
	}
}

type resettableWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

// compressWriter encodes the body lazily so bodiless statuses pass through untouched.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	enc         resettableWriter
	wroteHeader bool
	passthrough bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		w.passthrough = true
	} else {
		w.Header().Set("Content-Encoding", w.encoding)
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}
	if w.enc == nil {
		w.enc = w.acquire()
	}
	return w.enc.Write(b)
}

func (w *compressWriter) Flush() {
	if f, ok := w.enc.(interface{ Flush() error }); ok && w.enc != nil {
		_ = f.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) acquire() resettableWriter {
	var enc resettableWriter
	if w.encoding == "br" {
		enc = brotliPool.Get().(*brotli.Writer)
	} else {
		enc = gzipPool.Get().(*gzip.Writer)
	}
	enc.Reset(w.ResponseWriter)
	return enc
}

func (w *compressWriter) close() {
	if !w.wroteHeader || w.passthrough {
		return
	}
	if w.enc == nil {
		// Headers promised an encoded body; emit a valid empty stream.
		w.enc = w.acquire()
	}
	_ = w.enc.Close()
	if w.encoding == "br" {
		brotliPool.Put(w.enc)
	} else {
		gzipPool.Put(w.enc)
	}
	w.enc = nil
}

// Compress encodes responses with brotli or gzip, whichever the client
// prefers (brotli wins ties). Websocket upgrades are passed through.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" || r.Method == http.MethodHead || isUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
