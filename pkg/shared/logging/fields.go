// Package logging provides a chainable structured-field builder used
// across the runner so every log line carries consistent keys regardless
// of whether it ends up on a zap core (production) or a logrus logger
// (tests, matching the teacher's test idiom).
package logging

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Fields is a chainable map of structured logging fields.
type Fields map[string]interface{}

func New() Fields { return Fields{} }

func (f Fields) Component(name string) Fields { f["component"] = name; return f }
func (f Fields) Operation(op string) Fields   { f["operation"] = op; return f }

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d interface{ Milliseconds() int64 }) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(v string) Fields {
	if v != "" {
		f["user_id"] = v
	}
	return f
}

func (f Fields) RequestID(v string) Fields {
	if v != "" {
		f["request_id"] = v
	}
	return f
}

func (f Fields) TraceID(v string) Fields {
	if v != "" {
		f["trace_id"] = v
	}
	return f
}

func (f Fields) StatusCode(code int) Fields { f["status_code"] = code; return f }
func (f Fields) Method(m string) Fields     { f["method"] = m; return f }
func (f Fields) URL(u string) Fields        { f["url"] = u; return f }
func (f Fields) Count(n int) Fields         { f["count"] = n; return f }

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields          { f["version"] = v; return f }
func (f Fields) Custom(key string, val interface{}) Fields { f[key] = val; return f }

func (f Fields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ToZap converts to zap.Field slice for production loggers.
func (f Fields) ToZap() []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func DatabaseFields(op, table string) Fields {
	return New().Component("database").Operation(op).Resource("table", table)
}

func HTTPFields(method, url string, status int) Fields {
	return New().Component("http").Method(method).URL(url).StatusCode(status)
}

func WorkflowFields(op, workflowID string) Fields {
	return New().Component("workflow").Operation(op).Resource("workflow", workflowID)
}

func ActionFields(op, referenceHandle string) Fields {
	return New().Component("workflow").Operation(op).Resource("action", referenceHandle)
}

func AIFields(op, model string) Fields {
	return New().Component("ai").Operation(op).Resource("model", model)
}

func MetricsFields(op, metricName string, value float64) Fields {
	return New().Component("metrics").Operation(op).Custom("metric_name", metricName).Custom("metric_value", value)
}

func SecurityFields(op, subject string) Fields {
	return New().Component("security").Operation(op).Resource("subject", subject)
}

func PerformanceFields(op string, durationMs int64, success bool) Fields {
	return New().Component("performance").Operation(op).Custom("duration_ms", durationMs).Custom("success", success)
}
