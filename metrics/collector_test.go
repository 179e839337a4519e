package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_JobLifecycle(t *testing.T) {
	c := NewCollector()
	c.JobStarted()
	if got := testutil.ToFloat64(c.jobsInFlight); got != 1 {
		t.Errorf("jobs_in_flight: got %v, want 1", got)
	}
	c.JobFinished("copy", "completed")
	if got := testutil.ToFloat64(c.jobsInFlight); got != 0 {
		t.Errorf("jobs_in_flight after finish: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.jobsTotal.WithLabelValues("copy", "completed")); got != 1 {
		t.Errorf("jobs_total{copy,completed}: got %v, want 1", got)
	}
}

func TestCollector_BytesTransferred(t *testing.T) {
	c := NewCollector()
	c.BytesTransferred("s3", 1024)
	c.BytesTransferred("s3", 512)
	c.BytesTransferred("s3", -5) // must be ignored
	if got := testutil.ToFloat64(c.bytesTransferred.WithLabelValues("s3")); got != 1536 {
		t.Errorf("bytes_transferred{s3}: got %v, want 1536", got)
	}
}

func TestCollector_RetryAttempted(t *testing.T) {
	c := NewCollector()
	c.RetryAttempted("download")
	c.RetryAttempted("download")
	if got := testutil.ToFloat64(c.retries.WithLabelValues("download")); got != 2 {
		t.Errorf("retries_total{download}: got %v, want 2", got)
	}
}

func TestCollector_BackendCall(t *testing.T) {
	c := NewCollector()
	c.BackendCall("gcs", "put", "ok", 0.05)
	if got := testutil.ToFloat64(c.backendCalls.WithLabelValues("gcs", "put", "ok")); got != 1 {
		t.Errorf("backend_calls_total: got %v, want 1", got)
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *Collector
	c.JobStarted()
	c.JobFinished("copy", "failed")
	c.BytesTransferred("s3", 10)
	c.RetryAttempted("upload")
	c.BackendCall("s3", "get", "error", 1.0)
	if c.Handler() == nil {
		t.Error("Handler() must not return nil on nil receiver")
	}
}
