package parser

import (
	"testing"
)

func TestDrainParser_GroupsSimilarLines(t *testing.T) {
	p, err := NewDrainParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	first, err := p.Parse("connection from 10.0.0.1 closed")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	second, err := p.Parse("connection from 10.0.0.2 closed")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if first.GetField("template_id") != second.GetField("template_id") {
		t.Errorf("expected same template id, got %s and %s",
			first.GetField("template_id"), second.GetField("template_id"))
	}
	if second.GetField("parameters") != "10.0.0.2" {
		t.Errorf("expected parameters 10.0.0.2, got %q", second.GetField("parameters"))
	}
}

func TestDrainParser_DifferentShapesSeparate(t *testing.T) {
	p, err := NewDrainParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	a, err := p.Parse("user alice logged in")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	b, err := p.Parse("disk almost full")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if a.GetField("template_id") == b.GetField("template_id") {
		t.Error("expected different templates for unrelated lines")
	}
}

func TestDrainParser_EmitsExpectedFields(t *testing.T) {
	p, err := NewDrainParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	rec, err := p.Parse("job 42 finished")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	for _, field := range []string{"template_id", "template", "parameters"} {
		if !rec.HasField(field) {
			t.Errorf("expected field %s", field)
		}
	}
	// Digit-bearing tokens are generalised immediately
	if rec.GetField("parameters") != "42" {
		t.Errorf("expected parameters 42, got %q", rec.GetField("parameters"))
	}
}

func TestDrainParser_ValidateRejectsBlank(t *testing.T) {
	p, err := NewDrainParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	if p.Validate("   ") {
		t.Error("expected blank line to fail validation")
	}
}
