package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit("wardrobe")
	c.RecordCacheHit("wardrobe")
	c.RecordCacheMiss("outfits")

	if got := testutil.ToFloat64(c.cacheHits.WithLabelValues("wardrobe")); got != 2 {
		t.Errorf("wardrobe hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheMisses.WithLabelValues("outfits")); got != 1 {
		t.Errorf("outfits misses = %v, want 1", got)
	}
}

func TestRollbackAndInvalidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRollback("wardrobe", "delete")
	c.RecordInvalidation("outfits")

	if got := testutil.ToFloat64(c.rollbacks.WithLabelValues("wardrobe", "delete")); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.invalidations.WithLabelValues("outfits")); got != 1 {
		t.Errorf("invalidations = %v, want 1", got)
	}
}

func TestAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPIRequest("list_items", 200, 20*time.Millisecond)
	c.RecordAPIRequest("list_items", 500, 5*time.Millisecond)

	if got := testutil.ToFloat64(c.apiRequests.WithLabelValues("list_items", "500")); got != 1 {
		t.Errorf("500 count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.apiLatency); n != 1 {
		t.Errorf("expected 1 latency series, got %d", n)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCacheHit("wardrobe")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "garderoba_cache_hits_total") {
		t.Errorf("expected cache hits metric in output")
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordAPIRequest("x", 0, time.Second)
}
