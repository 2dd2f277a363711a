package storage

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/metric"
)

func TestInstrument(t *testing.T) {
	base := openTestStore(t, BackendBolt, filepath.Join(t.TempDir(), "inst"))
	defer base.Close()

	if Instrument(base, BackendBolt, nil) != base {
		t.Error("Instrument with nil registry should return the store")
	}

	reg := metric.NewRegistry()
	s := Instrument(base, BackendBolt, reg)

	if err := s.Insert("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get("k"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get("missing"); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert("", nil); err == nil {
		t.Fatal("expected empty key error")
	}

	ops := reg.StorageOperations
	if got := testutil.ToFloat64(ops.WithLabelValues("bolt", "get", metric.ResultOK)); got != 2 {
		t.Errorf("get ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("bolt", "insert", metric.ResultOK)); got != 1 {
		t.Errorf("insert ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("bolt", "insert", metric.ResultError)); got != 1 {
		t.Errorf("insert error = %v, want 1", got)
	}

	if u, ok := s.(interface{ Unwrap() Store }); !ok || u.Unwrap() != base {
		t.Error("Unwrap() should return the wrapped store")
	}
}
