package cache

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheManager_Disabled(t *testing.T) {
	assert.Nil(t, NewCacheManager(nil))
	assert.Nil(t, NewCacheManager(&CacheConfig{Enabled: false}))

	var cm *CacheManager
	cm.InvalidateAll()

	var calls atomic.Int32
	h := cm.ReadMiddleware()(countingHandler(200, `{}`, &calls))
	get(h, http.MethodGet, "/a")
	get(h, http.MethodGet, "/a")
	assert.EqualValues(t, 2, calls.Load())

	w := cm.InvalidateOnWrite()(countingHandler(200, `{}`, &calls))
	get(w, http.MethodPost, "/a")
	assert.EqualValues(t, 3, calls.Load())
}

func TestCacheManager_WritesInvalidateReads(t *testing.T) {
	cm := NewCacheManager(&CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10})
	require.NotNil(t, cm)

	var reads atomic.Int32
	var writeStatus atomic.Int32
	writeStatus.Store(http.StatusOK)

	r := chi.NewRouter()
	r.Use(cm.InvalidateOnWrite())
	r.With(cm.ReadMiddleware()).Get("/tree", countingHandler(200, `{"tree":[]}`, &reads).ServeHTTP)
	r.Post("/assets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(writeStatus.Load()))
	})

	get(r, http.MethodGet, "/tree")
	assert.Equal(t, "HIT", get(r, http.MethodGet, "/tree").Header().Get("X-Cache"))
	assert.EqualValues(t, 1, reads.Load())

	writeStatus.Store(http.StatusBadRequest)
	get(r, http.MethodPost, "/assets")
	assert.Equal(t, "HIT", get(r, http.MethodGet, "/tree").Header().Get("X-Cache"), "failed write keeps cache")

	writeStatus.Store(http.StatusCreated)
	get(r, http.MethodPost, "/assets")
	assert.Equal(t, "MISS", get(r, http.MethodGet, "/tree").Header().Get("X-Cache"))
	assert.EqualValues(t, 2, reads.Load())
}
