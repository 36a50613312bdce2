package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordUpload(100, 10*time.Millisecond)
	m.RecordUpload(300, 30*time.Millisecond)
	m.RecordUploadError()
	m.RecordUploadRejected()
	m.RecordDelivery(50)
	m.RecordDeliveryMiss()
	m.RecordDeliveryError()
	m.RecordDelete(true, nil)
	m.RecordDelete(false, nil)
	m.RecordDelete(false, errors.New("disk gone"))
	m.RecordAuth(true)
	m.RecordAuth(false)
	m.RecordRequest(200)
	m.RecordRequest(404)
	m.RecordRequest(503)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.UploadsTotal)
	assert.EqualValues(t, 400, snap.UploadBytesTotal)
	assert.EqualValues(t, 1, snap.UploadErrorsTotal)
	assert.EqualValues(t, 1, snap.UploadRejectedTotal)
	assert.InDelta(t, 20.0, snap.UploadAvgDurationMs, 0.001)
	assert.EqualValues(t, 1, snap.DeliveriesTotal)
	assert.EqualValues(t, 50, snap.DeliveryBytesTotal)
	assert.EqualValues(t, 1, snap.DeliveryMissesTotal)
	assert.EqualValues(t, 1, snap.DeliveryErrorsTotal)
	assert.EqualValues(t, 1, snap.DeletesTotal)
	assert.EqualValues(t, 1, snap.DeleteMissesTotal)
	assert.EqualValues(t, 1, snap.DeleteErrorsTotal)
	assert.EqualValues(t, 1, snap.AuthSuccessTotal)
	assert.EqualValues(t, 1, snap.AuthFailuresTotal)
	assert.EqualValues(t, 3, snap.RequestsTotal)
	assert.EqualValues(t, 1, snap.RequestErrors4xx)
	assert.EqualValues(t, 1, snap.RequestErrors5xx)
}

func TestAvgDuration_Empty(t *testing.T) {
	assert.Zero(t, avgDuration(time.Second, 0))
}

func TestPrometheusLabel(t *testing.T) {
	assert.Equal(t, `v1 \"beta\" \\ \n`, prometheusLabel("v1 \"beta\" \\ \n"))
}
