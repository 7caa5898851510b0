package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitDefault(t *testing.T) {
	Reset()

	m := InitDefault()
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if m != Default {
		t.Error("expected returned metrics to be same as Default")
	}

	// Calling again should return same instance
	if m2 := InitDefault(); m2 != m {
		t.Error("expected same instance on second call")
	}
}

func TestGetDefault(t *testing.T) {
	m := GetDefault()
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if m2 := GetDefault(); m2 != m {
		t.Error("expected same instance on second call")
	}
}

func TestNewRegistry(t *testing.T) {
	reg, m := NewRegistry()

	m.CommandExecutions.WithLabelValues("test", "true").Inc()

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "timeline_command_executions_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("metrics not registered with custom registry")
	}
}

func TestWriteText(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordMutation("drop", "")
	m.RecordPass(true, 2, 1, 0)

	var buf bytes.Buffer
	if err := WriteText(&buf, reg); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	body := buf.String()
	for _, want := range []string{
		"# TYPE timeline_mutations_total counter",
		`timeline_mutations_total{operation="drop",outcome="committed"} 1`,
		"timeline_propagation_edges_visited_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMultipleRegistries(t *testing.T) {
	_, m1 := NewRegistry()
	_, m2 := NewRegistry()

	if m1 == m2 {
		t.Error("expected different metrics instances")
	}
}
