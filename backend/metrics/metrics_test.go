package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func assertContains(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in exposition:\n%s", line, body)
		}
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveOperation("start", time.Second, nil)
	m.ObserveBusy("stop")
	m.ObserveState(true, "yx_main", time.Now())
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}

func TestMetrics_ObserveOperation(t *testing.T) {
	t.Parallel()

	m := New([]string{"yx_main", "yx_h5"})
	m.ObserveOperation("start", 10*time.Millisecond, nil)
	m.ObserveOperation("start", 10*time.Millisecond, errors.New("boom"))
	m.ObserveBusy("start")

	assertContains(t, scrape(t, m),
		`quicknginx_operations_total{command="start",result="success"} 1`,
		`quicknginx_operations_total{command="start",result="error"} 1`,
		`quicknginx_operations_total{command="start",result="busy"} 1`,
		`quicknginx_busy_rejections_total 1`,
		`quicknginx_operation_duration_seconds_count{command="start"} 2`,
	)
}

func TestMetrics_ObserveState(t *testing.T) {
	t.Parallel()

	m := New([]string{"yx_main", "yx_h5"})
	m.ObserveState(true, "yx_h5", time.Unix(100, 0))
	assertContains(t, scrape(t, m),
		`quicknginx_nginx_running 1`,
		`quicknginx_active_fragment{fragment="yx_h5"} 1`,
		`quicknginx_active_fragment{fragment="yx_main"} 0`,
	)

	m.ObserveState(false, "", time.Unix(200, 0))
	assertContains(t, scrape(t, m),
		`quicknginx_nginx_running 0`,
		`quicknginx_active_fragment{fragment="yx_h5"} 0`,
		`quicknginx_last_status_check_timestamp_seconds 200`,
		`quicknginx_status_checks_total 2`,
	)
}
