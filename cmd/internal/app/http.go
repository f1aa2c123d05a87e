package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newHandler builds the full HTTP surface: operational probes, metrics,
// the JSON API (behind CORS) and the websocket gateway.
func (a *App) newHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ReadinessRequireDB && a.dbPool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if a.dbPool != nil {
			if err := PingDB(r.Context(), a.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if a.cfg.MetricsEnabled && a.promReg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{
			Registry:          a.promReg,
			EnableOpenMetrics: true,
		}))
	}

	api := http.NewServeMux()
	a.api.Register(api)
	mux.Handle("/api/", WithCORS(api, a.cfg, a.log))

	mux.Handle("GET /ws", a.gateway)

	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}
