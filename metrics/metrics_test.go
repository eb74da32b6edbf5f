package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kbukum/eventfeed/logger"
	"github.com/kbukum/eventfeed/sse"
)

func TestMetrics_StreamObserver(t *testing.T) {
	m := New()

	m.StreamRejected()
	m.StreamRefused()
	m.StreamOpened()
	m.StreamOpened()
	m.FrameSent(30)
	m.FrameSent(12)
	m.StreamClosed(sse.TerminationDisconnected)

	if got := testutil.ToFloat64(m.StreamsActive); got != 1 {
		t.Errorf("streams_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsTotal.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsTotal.WithLabelValues("refused")); got != 1 {
		t.Errorf("refused = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsTotal.WithLabelValues("disconnected")); got != 1 {
		t.Errorf("disconnected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FramesSent); got != 2 {
		t.Errorf("frames_sent_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FrameBytes); got != 42 {
		t.Errorf("frame_bytes_total = %v, want 42", got)
	}
}

func TestMetrics_EventPublished(t *testing.T) {
	m := New()
	m.EventPublished("api")
	m.EventPublished("kafka")
	m.EventPublished("api")
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("api")); got != 2 {
		t.Errorf("api = %v, want 2", got)
	}
}

func TestMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/alive", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/alive", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/alive", "200")); got != 3 {
		t.Errorf("alive requests = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestServer_ServesRegistry(t *testing.T) {
	m := New()
	m.EventPublished("api")

	s := NewServer(Config{Enabled: true, Addr: "127.0.0.1:0"}, m, logger.Nop())
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `eventfeed_events_published_total{source="api"} 1`) {
		t.Errorf("published counter missing from scrape output")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("runtime collectors missing from scrape output")
	}
	if !strings.Contains(string(body), "eventfeed_build_info{") {
		t.Errorf("build info missing from scrape output")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Enabled: true, Addr: "nonsense"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid addr error")
	}
}
