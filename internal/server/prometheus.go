package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PrometheusHandler serves the server's counters in the Prometheus text
// exposition format. Store gauges are computed from a fresh List so they
// always reflect the backing location.
func (s *Server) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.metrics.Snapshot()

		var out strings.Builder
		gauge := func(name, help string, value any) {
			fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, value)
		}
		counter := func(name, help string, value int64) {
			fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
		}

		fmt.Fprintf(&out, "# HELP picdrop_info Build information\n# TYPE picdrop_info gauge\npicdrop_info{version=\"%s\",commit=\"%s\"} 1\n\n",
			prometheusLabel(s.cfg.Build.Version), prometheusLabel(s.cfg.Build.Commit))

		counter("picdrop_requests_total", "Total number of HTTP requests", snap.RequestsTotal)
		out.WriteString("# HELP picdrop_request_errors_total HTTP responses with an error status\n")
		out.WriteString("# TYPE picdrop_request_errors_total counter\n")
		fmt.Fprintf(&out, "picdrop_request_errors_total{class=\"4xx\"} %d\n", snap.RequestErrors4xx)
		fmt.Fprintf(&out, "picdrop_request_errors_total{class=\"5xx\"} %d\n\n", snap.RequestErrors5xx)

		counter("picdrop_uploads_total", "Assets stored", snap.UploadsTotal)
		counter("picdrop_upload_bytes_total", "Bytes stored by uploads", snap.UploadBytesTotal)
		counter("picdrop_upload_errors_total", "Uploads that failed in the store", snap.UploadErrorsTotal)
		counter("picdrop_upload_rejected_total", "Uploads refused by validation", snap.UploadRejectedTotal)
		gauge("picdrop_upload_avg_duration_ms", "Mean store time of successful uploads", snap.UploadAvgDurationMs)

		counter("picdrop_deliveries_total", "Assets served", snap.DeliveriesTotal)
		counter("picdrop_delivery_bytes_total", "Size of assets served", snap.DeliveryBytesTotal)
		counter("picdrop_delivery_misses_total", "Delivery requests for unknown ids", snap.DeliveryMissesTotal)
		counter("picdrop_delivery_errors_total", "Delivery requests that failed in the store", snap.DeliveryErrorsTotal)

		counter("picdrop_deletes_total", "Assets deleted", snap.DeletesTotal)
		counter("picdrop_delete_misses_total", "Delete requests for unknown ids", snap.DeleteMissesTotal)
		counter("picdrop_delete_errors_total", "Delete requests that failed in the store", snap.DeleteErrorsTotal)

		counter("picdrop_auth_success_total", "Accepted admin credentials", snap.AuthSuccessTotal)
		counter("picdrop_auth_failures_total", "Rejected admin credentials", snap.AuthFailuresTotal)

		if list, err := s.cfg.Store.List(r.Context()); err == nil {
			var size int64
			for _, a := range list {
				size += a.Size
			}
			gauge("picdrop_assets", "Assets currently stored", len(list))
			gauge("picdrop_asset_bytes", "Total size of stored assets", size)
		} else {
			s.log.Warningf("rid=%s msg=\"metrics store list failed\" err=%v", RequestIDFromContext(r.Context()), err)
		}

		gauge("picdrop_uptime_seconds", "Seconds since the server started", int64(time.Since(s.started).Seconds()))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	})
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}
