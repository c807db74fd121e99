// Package httpmw holds the middleware shared by the web and API servers.
//
// Every request carries an *Entry in its context. Handlers further down the
// chain record who the request was made for (SetUser, SetClient) and the
// access log writes the finished entry as one JSON line.
package httpmw

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

type contextKey struct{}

// Entry is the log record of one request.
type Entry struct {
	mu sync.Mutex

	RequestID string
	Method    string
	Path      string
	RemoteIP  string
	User      string
	Client    string
	Started   time.Time
}

// line is the JSON shape of an access or panic log line.
type line struct {
	TS         string `json:"ts"`
	Level      string `json:"level"`
	Msg        string `json:"msg"`
	RequestID  string `json:"request_id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	User       string `json:"user,omitempty"`
	Client     string `json:"client,omitempty"`
	Status     int    `json:"status,omitempty"`
	Bytes      int    `json:"bytes,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	RemoteIP   string `json:"remote_ip,omitempty"`
	Panic      string `json:"panic,omitempty"`
	Stack      string `json:"stack,omitempty"`
}

func (e *Entry) line(level, msg string) line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return line{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Msg:       msg,
		RequestID: e.RequestID,
		Method:    e.Method,
		Path:      e.Path,
		User:      e.User,
		Client:    e.Client,
		RemoteIP:  e.RemoteIP,
	}
}

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// EntryFromContext returns the request's log entry, or nil outside a request
// that went through WithRequestID.
func EntryFromContext(ctx context.Context) *Entry {
	if ctx == nil {
		return nil
	}
	e, _ := ctx.Value(contextKey{}).(*Entry)
	return e
}

func RequestIDFromContext(ctx context.Context) string {
	if e := EntryFromContext(ctx); e != nil {
		return e.RequestID
	}
	return ""
}

// SetUser records the signed-in email on the request's log entry.
func SetUser(ctx context.Context, email string) {
	if e := EntryFromContext(ctx); e != nil {
		e.mu.Lock()
		e.User = email
		e.mu.Unlock()
	}
}

// SetClient records the browser id on the request's log entry.
func SetClient(ctx context.Context, clientID string) {
	if e := EntryFromContext(ctx); e != nil {
		e.mu.Lock()
		e.Client = clientID
		e.mu.Unlock()
	}
}

// WithRequestID starts the request's log entry. An incoming X-Request-Id is
// kept; otherwise one is generated. The id is echoed in the response.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if rid == "" {
			rid = newRequestID()
		}
		w.Header().Set("X-Request-Id", rid)
		e := &Entry{
			RequestID: rid,
			Method:    r.Method,
			Path:      r.URL.Path,
			RemoteIP:  clientIP(r),
			Started:   time.Now(),
		}
		ctx := context.WithValue(r.Context(), contextKey{}, e)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// entryFor returns the request's entry, starting a bare one when the chain
// has no WithRequestID.
func entryFor(r *http.Request) *Entry {
	if e := EntryFromContext(r.Context()); e != nil {
		return e
	}
	return &Entry{Method: r.Method, Path: r.URL.Path, RemoteIP: clientIP(r), Started: time.Now()}
}

var jsonServerError = []byte(`{"error":"internal server error"}` + "\n")

// WithRecover turns a panic into a 500. jsonPrefix selects the paths that
// get a JSON error body; empty means none.
func WithRecover(logger *log.Logger, jsonPrefix string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				l := entryFor(r).line("error", "panic_recovered")
				l.Panic = fmt.Sprint(rec)
				l.Stack = string(debug.Stack())
				writeLine(logger, l)

				if jsonPrefix == "" || !strings.HasPrefix(r.URL.Path, jsonPrefix) {
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				if _, err := w.Write(jsonServerError); err != nil {
					logger.Printf("Error writing panic response: %v", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WithAccessLog writes one line per request once the handler returned.
func WithAccessLog(logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			e := entryFor(r)
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			l := e.line("info", "http_request")
			l.Status = sw.status
			l.Bytes = sw.bytes
			l.DurationMS = time.Since(e.Started).Milliseconds()
			writeLine(logger, l)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is needed by the websocket upgrade on /ws.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func newRequestID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-Ip.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xrip != "" {
		return xrip
	}
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func writeLine(logger *log.Logger, l line) {
	b, err := json.Marshal(l)
	if err != nil {
		logger.Printf("Error encoding log line: %v", err)
		return
	}
	logger.Print(string(b))
}
