package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers ALL enqueued collectors with Prometheus exactly once.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func result(ok bool) string {
	if ok {
		return "allowed"
	}
	return "denied"
}
