package core

import (
	"bytes"
	"context"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"themecore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op {
			if success && record.err == nil {
				return true
			}
			if !success && record.err != nil {
				return true
			}
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilityCoversOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	user, _, err := svc.CreateUser(ctx, User{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !audit.has("create_user", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == user.ID }) {
		t.Fatalf("expected audit entry for create_user success")
	}

	org, _, err := svc.CreateOrganization(ctx, Organization{ClerkOrgID: "org_1", Name: "Org", Seats: 5})
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, user.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("add member: %v", err)
	}

	theme, _, err := svc.CreateTheme(ctx, Theme{UserID: user.ID, Name: "Dark"})
	if err != nil {
		t.Fatalf("create theme: %v", err)
	}
	if _, _, err := svc.UpdateTheme(ctx, user.ID, theme.ID, func(th *Theme) error {
		th.Name = "Darker"
		return nil
	}); err != nil {
		t.Fatalf("update theme: %v", err)
	}
	if _, _, err := svc.GenerateTheme(ctx, user.ID, theme.ID, renderedDoc); err != nil {
		t.Fatalf("generate theme: %v", err)
	}
	if _, err := svc.DeleteTheme(ctx, user.ID, theme.ID); err != nil {
		t.Fatalf("delete theme: %v", err)
	}

	if _, err := svc.DeleteTheme(ctx, user.ID, "missing"); err == nil {
		t.Fatalf("expected delete_theme error for missing id")
	}
	if !audit.has("delete_theme", AuditStatusError, nil) {
		t.Fatalf("expected audit error entry for delete_theme")
	}
	if !metrics.has("delete_theme", false) {
		t.Fatalf("expected metrics entry for failed delete_theme")
	}
	if !tracer.has("delete_theme", false) {
		t.Fatalf("expected trace span for failed delete_theme")
	}

	successOps := []string{
		"create_user",
		"create_organization",
		"add_member",
		"create_theme",
		"update_theme",
		"generate_theme",
		"delete_theme",
	}
	for _, op := range successOps {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
}

const entryStatusSuccess = "success"
const entryStatusError = "error"

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] <= 0 {
		t.Fatalf("expected positive duration, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"][entryStatusSuccess] != 1 || snapshot.Results["test_op"][entryStatusError] != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single span entry, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != entryStatusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}

func TestPrometheusMetricsRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(recorder.results.WithLabelValues("test_op", entryStatusSuccess)); got != 1 {
		t.Fatalf("success counter: want 1 got %v", got)
	}
	if got := testutil.ToFloat64(recorder.results.WithLabelValues("test_op", entryStatusError)); got != 1 {
		t.Fatalf("error counter: want 1 got %v", got)
	}
	if count := testutil.CollectAndCount(recorder.durations); count != 1 {
		t.Fatalf("expected a single histogram series, got %d", count)
	}
}

func TestPrometheusMetricsRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOTelTracerSpans(t *testing.T) {
	tracer := NewOTelTracer(nil)
	ctx, span := tracer.Start(context.Background(), "trace_op")
	if ctx == nil || span == nil {
		t.Fatalf("expected context and span")
	}
	span.End(nil)

	_, errSpan := tracer.Start(context.Background(), "trace_op")
	errSpan.End(context.DeadlineExceeded)
}
