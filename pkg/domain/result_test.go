package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "nope"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	if got := result.Warnings(); len(got) != 1 || got[0].Rule != "warn" {
		t.Fatalf("unexpected warnings %+v", got)
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected blocking message in error, got %q", err.Error())
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(failingRule{})
	engine.Register(staticRule{"never"})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected rule error")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := TransportError{Op: "list equipment", Err: context.DeadlineExceeded}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("expected transport error to unwrap")
	}
	if got := (IntegrityError{Location: "Teatro", Count: 2}).Error(); !strings.Contains(got, "2") {
		t.Fatalf("expected count in message, got %q", got)
	}
	confirm := ConfirmationRequiredError{Reason: "items in repair", Items: []string{"Mesa"}}
	if !strings.Contains(confirm.Error(), "Mesa") {
		t.Fatalf("expected item names in message, got %q", confirm.Error())
	}
	if got := (NotFoundError{Entity: EntityLocation, Name: "Sótano"}).Error(); !strings.Contains(got, "Sótano") {
		t.Fatalf("unexpected not found message %q", got)
	}
	if got := (ValidationError{Field: "name", Message: "required"}).Error(); got != "name: required" {
		t.Fatalf("unexpected validation message %q", got)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }

func (failingRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type emptyView struct{}

func (emptyView) ListEquipment() []Equipment                 { return nil }
func (emptyView) ListLocations() []Location                  { return nil }
func (emptyView) ListMovements() []MovementRecord            { return nil }
func (emptyView) FindEquipment(int64) (Equipment, bool)      { return Equipment{}, false }
func (emptyView) FindLocation(int64) (Location, bool)        { return Location{}, false }
func (emptyView) FindLocationByName(string) (Location, bool) { return Location{}, false }
