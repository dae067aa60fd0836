// Package metrics exposes Prometheus-compatible metrics on a dedicated listener.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves the /metrics endpoint for scraping.
type MetricsServer struct {
	prefix string
	srv    *http.Server
}

// New creates a metrics server for the given address. An empty address
// returns a server that does nothing, so callers don't have to branch.
func New(packageName, addr string) (*MetricsServer, error) {
	m := &MetricsServer{prefix: sanitizePrefix(packageName)}
	if addr == "" {
		return m, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})
	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m, nil
}

// ListenAndServe starts the metrics listener. Returns immediately with nil
// when the server was created without an address.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

// Counter returns a process-wide counter named <prefix>_<name>.
func Counter(name string) *vmetrics.Counter {
	return vmetrics.GetOrCreateCounter(name)
}

// StatusCounter returns a counter partitioned by an outcome label, e.g.
// openroots_upload_total{outcome="ok"}.
func StatusCounter(name, outcome string) *vmetrics.Counter {
	return vmetrics.GetOrCreateCounter(fmt.Sprintf(`%s{outcome=%q}`, name, outcome))
}

func sanitizePrefix(packageName string) string {
	parts := strings.Split(packageName, "/")
	name := parts[len(parts)-1]
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}
