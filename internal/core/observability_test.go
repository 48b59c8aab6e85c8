package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+":"+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *captureLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}

func counterValue(t *testing.T, reg *prometheus.Registry, operation, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "custodycore_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == operation && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(recorder))
	mustCreate(t, svc, "SN1", "Laptop")
	if _, err := svc.Create(context.Background(), NewEquipment{Serial: "SN1"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if got := counterValue(t, reg, "create_equipment", "success"); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := counterValue(t, reg, "create_equipment", "error"); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf, 2)
	for i := 0; i < 3; i++ {
		_, span := tracer.Start(context.Background(), fmt.Sprintf("op%d", i))
		var err error
		if i == 2 {
			err = errors.New("boom")
		}
		span.End(err)
		span.End(nil)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "op1" || entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	dec := json.NewDecoder(&buf)
	lines := 0
	for dec.More() {
		var entry JSONTraceEntry
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode: %v", err)
		}
		lines++
	}
	if lines != 3 {
		t.Fatalf("expected 3 written spans, got %d", lines)
	}
}

func TestServiceLogsOutcomes(t *testing.T) {
	logger := &captureLogger{}
	svc := newTestService(t, WithLogger(logger))
	mustCreate(t, svc, "SN1", "Laptop")
	if _, err := svc.Delete(context.Background(), "7", "missing"); err == nil {
		t.Fatalf("expected delete failure")
	}
	if !logger.has("info:operation committed") || !logger.has("warn:operation failed") {
		t.Fatalf("unexpected log entries %v", logger.entries)
	}
}

func TestDefaultServiceOptions(t *testing.T) {
	o := defaultServiceOptions()
	if o.clock == nil || o.logger == nil || o.metrics == nil || o.tracer == nil || o.cache == nil || o.notifier == nil {
		t.Fatalf("expected non-nil defaults: %+v", o)
	}
	if o.cacheTTL != DefaultCacheTTL || o.blobs != nil {
		t.Fatalf("unexpected defaults %+v", o)
	}
	if o.clock.Now().Location().String() != "UTC" {
		t.Fatalf("expected UTC clock")
	}
}
