package cache

import (
	"bytes"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assetdna_http_cache_requests_total",
	Help: "Cached GET requests by result (hit, miss, shared).",
}, []string{"result"})

// Response is a captured HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func (r *Response) writeTo(w http.ResponseWriter, cacheStatus string) {
	if r.ContentType != "" {
		w.Header().Set("Content-Type", r.ContentType)
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// bufferedWriter captures a handler's response without sending it.
type bufferedWriter struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferedWriter) response() *Response {
	status := w.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		Status:      status,
		ContentType: w.header.Get("Content-Type"),
		Body:        w.body.Bytes(),
	}
}

// CacheMiddleware returns HTTP middleware that caches GET responses in the
// provided LRUCache. The cache key is the request URI (path + query).
//
// Behavior:
//   - Only GET requests are cached; all other methods pass through.
//   - On a hit the stored response is replayed with X-Cache: HIT.
//   - Concurrent misses for the same key run the handler once; the others
//     receive its response with X-Cache: SHARED.
//   - Only 200 responses are stored, and only if no invalidation happened
//     while the handler ran.
func CacheMiddleware(c *LRUCache) func(http.Handler) http.Handler {
	var flight singleflight.Group

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if cached, ok := c.Get(key); ok {
				cacheRequests.WithLabelValues("hit").Inc()
				cached.writeTo(w, "HIT")
				return
			}

			v, _, shared := flight.Do(key, func() (any, error) {
				gen := c.Generation()
				bw := newBufferedWriter()
				next.ServeHTTP(bw, r)
				resp := bw.response()
				if resp.Status == http.StatusOK {
					c.SetIfGeneration(key, resp, gen)
				}
				return resp, nil
			})

			if shared {
				cacheRequests.WithLabelValues("shared").Inc()
				v.(*Response).writeTo(w, "SHARED")
				return
			}
			cacheRequests.WithLabelValues("miss").Inc()
			v.(*Response).writeTo(w, "MISS")
		})
	}
}
