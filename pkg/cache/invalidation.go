package cache

import (
	"net/http"
)

// CacheManager owns the read cache and the middleware that clears it. A nil
// *CacheManager is valid and caches nothing.
type CacheManager struct {
	reads *LRUCache
}

// NewCacheManager creates a CacheManager from the given configuration.
// If cfg is nil or disabled, it returns nil.
func NewCacheManager(cfg *CacheConfig) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{reads: NewLRUCache(cfg.MaxSize, cfg.TTL)}
}

// InvalidateAll clears every cached response.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.reads.InvalidateAll()
}

// ReadMiddleware caches GET responses of the wrapped routes.
func (cm *CacheManager) ReadMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return CacheMiddleware(cm.reads)
}

// InvalidateOnWrite clears the cache after any mutating request that did not
// fail. A tree mutation can change any cached tree view or report, so the
// whole cache is dropped.
func (cm *CacheManager) InvalidateOnWrite() func(http.Handler) http.Handler {
	if cm == nil {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.status < http.StatusBadRequest {
				cm.InvalidateAll()
			}
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
