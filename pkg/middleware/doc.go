// Package middleware provides the HTTP observability middleware of the
// portal.
//
// This package includes:
//   - OpenTelemetry request tracing
//   - Prometheus request and upload metrics
//   - A structured access log
//   - Client address resolution behind trusted proxies
//
// # OpenTelemetry Middleware
//
// OpenTelemetry opens a server span per request, continuing any trace
// propagated by the caller:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// # Prometheus Metrics
//
// Metrics records request counts and durations labelled by chi route
// pattern, and doubles as the upload pipeline observer:
//
//	m := middleware.NewMetrics()
//	r.Use(m.Handler)
//	p := upload.NewPipeline(store, upload.WithObserver(m))
//	r.Handle("/metrics", promhttp.Handler())
//
// # Access Log
//
//	r.Use(chimw.RequestID)
//	r.Use(middleware.ClientIP([]string{"10.0.0.0/8"}, logger))
//	r.Use(middleware.AccessLog(logger))
package middleware
