package server

import (
	"sync"
	"time"
)

// Metrics holds per-server counters.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadRejectedTotal int64
	uploadDurationTotal time.Duration

	// Delivery metrics
	deliveriesTotal     int64
	deliveryBytesTotal  int64
	deliveryMissesTotal int64
	deliveryErrorsTotal int64

	// Delete metrics
	deletesTotal      int64
	deleteMissesTotal int64
	deleteErrorsTotal int64

	// Auth metrics
	authSuccessTotal  int64
	authFailuresTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a store failure during upload.
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordUploadRejected records an upload refused by validation.
func (m *Metrics) RecordUploadRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadRejectedTotal++
}

func (m *Metrics) RecordDelivery(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveriesTotal++
	m.deliveryBytesTotal += bytes
}

func (m *Metrics) RecordDeliveryMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryMissesTotal++
}

func (m *Metrics) RecordDeliveryError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryErrorsTotal++
}

// RecordDelete counts a delete outcome: found, missing or failed.
func (m *Metrics) RecordDelete(found bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err != nil:
		m.deleteErrorsTotal++
	case !found:
		m.deleteMissesTotal++
	default:
		m.deletesTotal++
	}
}

func (m *Metrics) RecordAuth(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.authSuccessTotal++
	} else {
		m.authFailuresTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadRejectedTotal: m.uploadRejectedTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DeliveriesTotal:     m.deliveriesTotal,
		DeliveryBytesTotal:  m.deliveryBytesTotal,
		DeliveryMissesTotal: m.deliveryMissesTotal,
		DeliveryErrorsTotal: m.deliveryErrorsTotal,
		DeletesTotal:        m.deletesTotal,
		DeleteMissesTotal:   m.deleteMissesTotal,
		DeleteErrorsTotal:   m.deleteErrorsTotal,
		AuthSuccessTotal:    m.authSuccessTotal,
		AuthFailuresTotal:   m.authFailuresTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadRejectedTotal int64   `json:"upload_rejected_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	DeliveriesTotal     int64 `json:"deliveries_total"`
	DeliveryBytesTotal  int64 `json:"delivery_bytes_total"`
	DeliveryMissesTotal int64 `json:"delivery_misses_total"`
	DeliveryErrorsTotal int64 `json:"delivery_errors_total"`

	DeletesTotal      int64 `json:"deletes_total"`
	DeleteMissesTotal int64 `json:"delete_misses_total"`
	DeleteErrorsTotal int64 `json:"delete_errors_total"`

	AuthSuccessTotal  int64 `json:"auth_success_total"`
	AuthFailuresTotal int64 `json:"auth_failures_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
