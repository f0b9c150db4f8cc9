package sentinel

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	d := Describe()

	if d.Model != ModelID {
		t.Fatalf("Model=%q, want %q", d.Model, ModelID)
	}
	if d.PolicyVersion != PolicyVersion {
		t.Fatalf("PolicyVersion=%q", d.PolicyVersion)
	}
	if len(d.Features) != 4 {
		t.Fatalf("features=%d, want 4", len(d.Features))
	}
	if len(d.Examples) != 2 {
		t.Fatalf("examples=%d, want 2", len(d.Examples))
	}
	if !strings.Contains(d.Examples[1].Behavior, "Correction: That statement is inaccurate. One plus one equals two.") {
		t.Fatalf("trigger example behavior=%q", d.Examples[1].Behavior)
	}
	if d.Config.SystemInstruction.Text() != PolicyDocument {
		t.Fatalf("description config does not carry the policy document")
	}
}
