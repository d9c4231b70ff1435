package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus exposition endpoint for the collector's
// registry. Mount it at MetricsConfig.Path, outside the API dispatcher so it
// does not require the local key.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
			ErrorLog:          slogErrorLog{},
		},
	)
}

// slogErrorLog adapts slog to promhttp.Logger.
type slogErrorLog struct{}

func (slogErrorLog) Println(v ...interface{}) {
	slog.Error("metrics exposition failed", "error", v)
}
