package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

func collectWith(cfg Config, finder *fakeFinder, parser *fakeParser) (*CollectHandler, *bytes.Buffer) {
	out := new(bytes.Buffer)
	return &CollectHandler{
		ConfigLoader: fakeConfigLoader{exists: true, cfg: cfg},
		Finder:       finder,
		Parser:       parser,
		Out:          out,
		Concurrency:  2,
	}, out
}

func TestCollect_AveragesDiscoveredReports(t *testing.T) {
	finder, parser := twoReports()
	h, _ := collectWith(DefaultConfig(), finder, parser)

	result, err := h.Collect(context.Background(), CollectOptions{Root: "."})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if result.Policy != domain.PolicyAverage || result.Percent != 70 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Measurements) != 2 || result.Measurements[0].Path != "app/jacoco.xml" {
		t.Fatalf("expected measurements in discovery order, got %+v", result.Measurements)
	}
	if len(finder.patterns) == 0 {
		t.Fatal("expected default patterns passed to the finder")
	}
}

func TestCollect_SumCounters(t *testing.T) {
	finder := &fakeFinder{
		locations: []ReportLocation{
			{Path: "a/jacoco.xml", Format: domain.FormatJacocoLine},
			{Path: "b/jacoco.xml", Format: domain.FormatJacocoLine},
		},
		files: map[string]string{"a/jacoco.xml": "x", "b/jacoco.xml": "x"},
	}
	parser := &fakeParser{measurements: map[string]domain.Measurement{
		"a/jacoco.xml": {Ratio: 0.9, Counter: &domain.CounterPair{Covered: 9, Missed: 1}},
		"b/jacoco.xml": {Ratio: 0.1, Counter: &domain.CounterPair{Covered: 10, Missed: 90}},
	}}
	cfg := DefaultConfig()
	cfg.Aggregation.UseAggregates = true
	h, _ := collectWith(cfg, finder, parser)

	result, err := h.Collect(context.Background(), CollectOptions{})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// 19 covered of 110
	if result.Policy != domain.PolicySumCounters || result.Percent != 17 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCollect_SumCountersRejectsCobertura(t *testing.T) {
	finder, parser := twoReports()
	cfg := DefaultConfig()
	cfg.Aggregation.UseAggregates = true
	h, _ := collectWith(cfg, finder, parser)

	_, err := h.Collect(context.Background(), CollectOptions{})
	var unsupported *domain.UnsupportedAggregationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedAggregationError, got %v", err)
	}
}

func TestCollect_NoReports(t *testing.T) {
	h, _ := collectWith(DefaultConfig(), &fakeFinder{}, &fakeParser{})
	if _, err := h.Collect(context.Background(), CollectOptions{}); !errors.Is(err, ErrNoReports) {
		t.Fatalf("expected ErrNoReports, got %v", err)
	}
}

func TestCollect_FindError(t *testing.T) {
	h, _ := collectWith(DefaultConfig(), &fakeFinder{findErr: errors.New("bad root")}, &fakeParser{})
	if _, err := h.Collect(context.Background(), CollectOptions{}); err == nil || !strings.Contains(err.Error(), "bad root") {
		t.Fatalf("expected find error, got %v", err)
	}
}

func TestCollect_FailPolicyStopsOnBadReport(t *testing.T) {
	finder, parser := twoReports()
	parser.errs = map[string]error{"web/cobertura.xml": errors.New("malformed")}
	h, _ := collectWith(DefaultConfig(), finder, parser)

	if _, err := h.Collect(context.Background(), CollectOptions{}); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCollect_SkipPolicyDropsBadReport(t *testing.T) {
	finder, parser := twoReports()
	parser.errs = map[string]error{"web/cobertura.xml": errors.New("malformed")}
	cfg := DefaultConfig()
	cfg.Reports.OnError = ErrorPolicySkip
	h, out := collectWith(cfg, finder, parser)

	result, err := h.Collect(context.Background(), CollectOptions{})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if result.Percent != 60 || len(result.Measurements) != 1 {
		t.Fatalf("expected only the JaCoCo report, got %+v", result)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Path != "web/cobertura.xml" {
		t.Fatalf("expected skipped report, got %+v", result.Skipped)
	}
	if len(result.Events) != 1 || result.Events[0].EventType() != "ReportSkipped" {
		t.Fatalf("expected ReportSkipped event, got %+v", result.Events)
	}
	if !strings.Contains(out.String(), "[covstatus] skipping web/cobertura.xml") {
		t.Fatalf("expected skip log, got %q", out.String())
	}
}

func TestCollect_SkipPolicyAllBad(t *testing.T) {
	finder, parser := twoReports()
	parser.errs = map[string]error{
		"app/jacoco.xml":    errors.New("truncated"),
		"web/cobertura.xml": errors.New("malformed"),
	}
	cfg := DefaultConfig()
	cfg.Reports.OnError = ErrorPolicySkip
	h, _ := collectWith(cfg, finder, parser)

	_, err := h.Collect(context.Background(), CollectOptions{})
	if err == nil || !strings.Contains(err.Error(), "truncated") || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("expected both failures reported, got %v", err)
	}
}

func TestCollect_UnreadableReport(t *testing.T) {
	h, _ := collectWith(DefaultConfig(), &fakeFinder{}, &fakeParser{})
	_, err := h.Collect(context.Background(), CollectOptions{Reports: []string{"missing.xml"}})
	var unreadable *domain.UnreadableReportError
	if !errors.As(err, &unreadable) || unreadable.Path != "missing.xml" {
		t.Fatalf("expected UnreadableReportError, got %v", err)
	}
}

func TestCollect_DetectedJacocoUsesConfiguredCounter(t *testing.T) {
	finder := &fakeFinder{files: map[string]string{"build/report.xml": "<report/>"}}
	parser := &fakeParser{detected: domain.FormatJacocoLine}
	cfg := DefaultConfig()
	cfg.Jacoco.Counter = "INSTRUCTION"
	h, _ := collectWith(cfg, finder, parser)

	if _, err := h.Collect(context.Background(), CollectOptions{Reports: []string{"build/report.xml"}}); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := parser.formatOf("build/report.xml"); got != domain.FormatJacocoInstruction {
		t.Fatalf("expected jacoco-instruction, got %s", got)
	}
}

func TestCollect_ExplicitFormatKept(t *testing.T) {
	finder := &fakeFinder{files: map[string]string{"jacoco.xml": "<report/>"}}
	parser := &fakeParser{}
	cfg := DefaultConfig()
	cfg.Jacoco.Counter = "INSTRUCTION"
	h, _ := collectWith(cfg, finder, parser)

	opts := CollectOptions{Reports: []string{"jacoco.xml"}, Format: domain.FormatJacocoBranch}
	if _, err := h.Collect(context.Background(), opts); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := parser.formatOf("jacoco.xml"); got != domain.FormatJacocoBranch {
		t.Fatalf("expected jacoco-branch, got %s", got)
	}
}

func TestCollect_DetectionFailure(t *testing.T) {
	finder := &fakeFinder{files: map[string]string{"notes.xml": "<notes/>"}}
	h, _ := collectWith(DefaultConfig(), finder, &fakeParser{})

	if _, err := h.Collect(context.Background(), CollectOptions{Reports: []string{"notes.xml"}}); err == nil {
		t.Fatal("expected detection error")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	finder, parser := twoReports()
	h, _ := collectWith(DefaultConfig(), finder, parser)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Collect(ctx, CollectOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
