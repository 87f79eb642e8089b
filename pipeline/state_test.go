package pipeline_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joelmontavon/fhir4ds/pipeline"
)

func TestNewState(t *testing.T) {
	s := pipeline.NewState("fhir_resources", "resource")
	if s.Fragment != "fhir_resources.resource" {
		t.Errorf("Fragment = %q", s.Fragment)
	}
	if s.PathContext != "$" {
		t.Errorf("PathContext = %q", s.PathContext)
	}
	if s.IsCollection {
		t.Error("initial state should be single-valued")
	}
	if s.Mode() != pipeline.SingleValue {
		t.Errorf("Mode = %v", s.Mode())
	}
}

func TestEvolveZeroChanges(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	s = s.Evolve(pipeline.Changes{
		AddCTEs: []pipeline.CTE{{Name: "a", SQL: "SELECT 1"}},
		Bind:    map[string]string{"e": "t.value"},
	})
	got := s.Evolve(pipeline.Changes{})
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("Evolve(zero) changed the state (-want +got):\n%s", diff)
	}
}

func TestEvolveDoesNotMutateReceiver(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	frag := "json_extract(r.resource, '$.name')"
	isColl := true
	after := s.Evolve(pipeline.Changes{
		Fragment:     &frag,
		IsCollection: &isColl,
		AddCTEs:      []pipeline.CTE{{Name: "c1", SQL: "SELECT 1"}},
		Bind:         map[string]string{"x": "t.value"},
	})

	if s.Fragment != "r.resource" || s.IsCollection || len(s.CTEs) != 0 || len(s.Variables) != 0 {
		t.Errorf("receiver mutated: %+v", s)
	}
	if after.Fragment != frag || !after.IsCollection {
		t.Errorf("Evolve did not apply changes: %+v", after)
	}
	if after.Mode() != pipeline.Collection {
		t.Errorf("Mode = %v", after.Mode())
	}
}

func TestEvolveSingleField(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	rt := "Patient"
	after := s.Evolve(pipeline.Changes{ResourceType: &rt})
	if after.ResourceType != "Patient" {
		t.Errorf("ResourceType = %q", after.ResourceType)
	}
	// everything else carries over
	after.ResourceType = s.ResourceType
	if diff := cmp.Diff(s, after); diff != "" {
		t.Errorf("unrelated fields changed (-want +got):\n%s", diff)
	}
}

func TestEvolveAddCTEsDedupes(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	s = s.Evolve(pipeline.Changes{AddCTEs: []pipeline.CTE{
		{Name: "a", SQL: "SELECT 1"},
		{Name: "b", SQL: "SELECT 2"},
	}})
	s = s.Evolve(pipeline.Changes{AddCTEs: []pipeline.CTE{
		{Name: "a", SQL: "SELECT 999"},
		{Name: "c", SQL: "SELECT 3"},
	}})

	want := []pipeline.CTE{
		{Name: "a", SQL: "SELECT 1"},
		{Name: "b", SQL: "SELECT 2"},
		{Name: "c", SQL: "SELECT 3"},
	}
	if diff := cmp.Diff(want, s.CTEs); diff != "" {
		t.Errorf("CTE accumulation (-want +got):\n%s", diff)
	}
}

func TestEvolveReplaceCTEs(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	s = s.Evolve(pipeline.Changes{AddCTEs: []pipeline.CTE{{Name: "a", SQL: "SELECT 1"}}})
	replaced := s.Evolve(pipeline.Changes{ReplaceCTEs: []pipeline.CTE{
		{Name: "a", SQL: "SELECT 1"},
		{Name: "b", SQL: "SELECT 2"},
	}})
	if len(replaced.CTEs) != 2 {
		t.Errorf("got %d CTEs, want 2", len(replaced.CTEs))
	}
	if len(s.CTEs) != 1 {
		t.Errorf("receiver CTE list mutated: %v", s.CTEs)
	}
}

func TestEvolveBindMerges(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	s1 := s.Evolve(pipeline.Changes{Bind: map[string]string{"e": "t.value"}})
	s2 := s1.Evolve(pipeline.Changes{Bind: map[string]string{"r": "r.value"}})

	if len(s1.Variables) != 1 {
		t.Errorf("first binding state has %v", s1.Variables)
	}
	want := map[string]string{"e": "t.value", "r": "r.value"}
	if diff := cmp.Diff(want, s2.Variables); diff != "" {
		t.Errorf("merged bindings (-want +got):\n%s", diff)
	}
}

func TestFreshBase(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	frag := "json_extract(r.resource, '$.name')"
	isColl := true
	rt := "Patient"
	s = s.Evolve(pipeline.Changes{
		Fragment:     &frag,
		IsCollection: &isColl,
		ResourceType: &rt,
		AddCTEs:      []pipeline.CTE{{Name: "a", SQL: "SELECT 1"}},
	})

	fresh := s.FreshBase()
	if fresh.Fragment != "r.resource" {
		t.Errorf("Fragment = %q", fresh.Fragment)
	}
	if fresh.PathContext != "$" {
		t.Errorf("PathContext = %q", fresh.PathContext)
	}
	if fresh.IsCollection {
		t.Error("fresh base should be single-valued")
	}
	if fresh.ResourceType != "Patient" {
		t.Error("resource type should carry into argument compilation")
	}
	if len(fresh.CTEs) != 1 {
		t.Error("CTE list should carry into argument compilation")
	}
}

func TestEffectiveBase(t *testing.T) {
	s := pipeline.NewState("r", "resource")
	if s.EffectiveBase() != "r.resource" {
		t.Errorf("EffectiveBase = %q", s.EffectiveBase())
	}
	frag := "'computed'"
	s = s.Evolve(pipeline.Changes{Fragment: &frag})
	if s.EffectiveBase() != "'computed'" {
		t.Errorf("EffectiveBase = %q", s.EffectiveBase())
	}
}
