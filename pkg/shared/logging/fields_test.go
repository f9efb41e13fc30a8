package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestFieldsChaining(t *testing.T) {
	fields := New().
		Component("workflow").
		Operation("run").
		Resource("workflow", "wf-1").
		Duration(1500 * time.Millisecond).
		Error(errors.New("boom"))

	if fields["component"] != "workflow" || fields["operation"] != "run" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["resource_type"] != "workflow" || fields["resource_name"] != "wf-1" {
		t.Fatalf("resource fields = %v", fields)
	}
	if fields["duration_ms"] != int64(1500) {
		t.Fatalf("duration_ms = %v", fields["duration_ms"])
	}
	if fields["error"] != "boom" {
		t.Fatalf("error = %v", fields["error"])
	}
}

func TestErrorIgnoresNil(t *testing.T) {
	fields := New().Error(nil)
	if _, ok := fields["error"]; ok {
		t.Fatal("nil error should not add a field")
	}
}

func TestWorkflowFields(t *testing.T) {
	fields := WorkflowFields("run", "wf-1")
	if fields["component"] != "workflow" || fields["resource_name"] != "wf-1" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestToLogrus(t *testing.T) {
	converted := New().Component("http").StatusCode(200).ToLogrus()
	want := logrus.Fields{"component": "http", "status_code": 200}
	if len(converted) != len(want) || converted["component"] != "http" || converted["status_code"] != 200 {
		t.Fatalf("ToLogrus = %v", converted)
	}
}

func TestToZapCarriesAllKeys(t *testing.T) {
	fields := HTTPFields("POST", "https://api/x", 502).ToZap()
	if len(fields) != 4 {
		t.Fatalf("expected 4 zap fields, got %d", len(fields))
	}
}
