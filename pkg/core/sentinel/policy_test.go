package sentinel

import (
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

type scenario struct {
	Name       string `yaml:"name"`
	Statement  string `yaml:"statement"`
	Kind       string `yaml:"kind"`
	Category   string `yaml:"category"`
	Risk       string `yaml:"risk"`
	Topic      string `yaml:"topic"`
	Correction string `yaml:"correction"`
	Confident  bool   `yaml:"confident"`
	Expect     struct {
		Speaks    bool   `yaml:"speaks"`
		Format    string `yaml:"format"`
		Utterance string `yaml:"utterance"`
	} `yaml:"expect"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("read scenarios: %v", err)
	}
	var doc struct {
		Scenarios []scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode scenarios: %v", err)
	}
	if len(doc.Scenarios) == 0 {
		t.Fatalf("no scenarios loaded")
	}
	return doc.Scenarios
}

func (s scenario) verdict(t *testing.T) Verdict {
	t.Helper()
	cat, err := ParseCategory(s.Category)
	if err != nil {
		t.Fatalf("%s: %v", s.Name, err)
	}
	return Verdict{
		Kind:       Kind(s.Kind),
		Category:   cat,
		Risk:       RiskArea(s.Risk),
		Topic:      s.Topic,
		Correction: s.Correction,
		Confident:  s.Confident,
	}
}

func TestDecide_Scenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			d := Decide(sc.verdict(t))

			if d.Speaks() != sc.Expect.Speaks {
				t.Fatalf("Speaks()=%v, want %v (utterance=%q)", d.Speaks(), sc.Expect.Speaks, d.Utterance)
			}
			if string(d.Format) != sc.Expect.Format {
				t.Fatalf("Format=%q, want %q", d.Format, sc.Expect.Format)
			}
			if d.Utterance != sc.Expect.Utterance {
				t.Fatalf("Utterance=%q, want %q", d.Utterance, sc.Expect.Utterance)
			}

			want := []State{StateEvaluating, StateSilent}
			if sc.Expect.Speaks {
				want = []State{StateEvaluating, StateIntervening, StateSilent}
			}
			if diff := cmp.Diff(want, d.Trajectory); diff != "" {
				t.Fatalf("Trajectory (-want +got):\n%s", diff)
			}
		})
	}
}

// remoteMonitor simulates the remote model walking a conversation under the
// policy: it starts silent, speaks at most once per statement and always
// returns to silence.
type remoteMonitor struct {
	state      State
	utterances []string
}

func (m *remoteMonitor) hear(v Verdict) {
	d := Decide(v)
	for _, s := range d.Trajectory {
		m.state = s
		if s == StateIntervening {
			m.utterances = append(m.utterances, d.Utterance)
		}
	}
}

func TestDecide_ConversationReturnsToSilence(t *testing.T) {
	scenarios := loadScenarios(t)
	m := &remoteMonitor{}
	if m.state != StateSilent {
		t.Fatalf("initial state=%s, want SILENT", m.state)
	}

	var want []string
	for _, sc := range scenarios {
		m.hear(sc.verdict(t))
		if m.state != StateSilent {
			t.Fatalf("after %s state=%s, want SILENT", sc.Name, m.state)
		}
		if sc.Expect.Speaks {
			want = append(want, sc.Expect.Utterance)
		}
	}

	if diff := cmp.Diff(want, m.utterances); diff != "" {
		t.Fatalf("utterances (-want +got):\n%s", diff)
	}
}

func TestDecide_RequiresCorrectionAndTopic(t *testing.T) {
	if d := Decide(Verdict{Kind: KindClaim, Category: CategoryFactual, Confident: true}); d.Speaks() {
		t.Fatalf("spoke without a correction: %q", d.Utterance)
	}
	if d := Decide(Verdict{Kind: KindClaim, Category: CategoryHighRisk, Correction: "see a doctor", Confident: true}); d.Speaks() {
		t.Fatalf("spoke without a topic: %q", d.Utterance)
	}

	d := Decide(Verdict{Category: CategoryHighRisk, Risk: RiskSafety, Correction: "stay calm", Confident: true})
	if !strings.HasPrefix(d.Utterance, SafetyAlertPrefix+" public safety ") {
		t.Fatalf("Utterance=%q, want risk area phrase as topic fallback", d.Utterance)
	}
}

func TestRiskArea_Phrase(t *testing.T) {
	cases := map[RiskArea]string{
		RiskMedical:            "medical advice",
		RiskFinancial:          "financial advice",
		RiskSafety:             "public safety",
		RiskCivic:              "civic information",
		RiskArea("air_travel"): "air travel",
	}
	for area, want := range cases {
		if got := area.Phrase(); got != want {
			t.Fatalf("%q.Phrase()=%q, want %q", area, got, want)
		}
	}
}

func TestUtterances_NonASCIIFirstLetter(t *testing.T) {
	got := CorrectionUtterance("état civil records show otherwise")
	if !utf8.ValidString(got) {
		t.Fatalf("CorrectionUtterance produced invalid UTF-8: %q", got)
	}
	if want := CorrectionPrefix + " État civil records show otherwise."; got != want {
		t.Fatalf("CorrectionUtterance=%q, want %q", got, want)
	}

	alert := SafetyAlertUtterance("burns", "ölbäder sind keine Behandlung")
	if !utf8.ValidString(alert) || !strings.HasSuffix(alert, " Ölbäder sind keine Behandlung.") {
		t.Fatalf("SafetyAlertUtterance=%q", alert)
	}
}

func TestPolicyDocument_MatchesTemplates(t *testing.T) {
	for _, fragment := range []string{
		CorrectionPrefix,
		SafetyAlertPrefix,
		safetyAlertBody,
		"Absolute Silence is Default",
		"If you are unsure, remain silent.",
		"Return to Silence",
	} {
		if !strings.Contains(PolicyDocument, fragment) {
			t.Fatalf("PolicyDocument missing %q", fragment)
		}
	}
}

func TestPolicyDocument_ConsistentWithModalities(t *testing.T) {
	if !strings.Contains(PolicyDocument, "audio-based") {
		t.Fatalf("policy no longer describes an audio monitor")
	}
	cfg := NewSessionConfig()
	var hasAudio bool
	for _, m := range cfg.ResponseModalities {
		if m == ModalityAudio {
			hasAudio = true
		}
	}
	if !hasAudio {
		t.Fatalf("audio policy requires the AUDIO modality, got %v", cfg.ResponseModalities)
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"":          CategoryNone,
		"none":      CategoryNone,
		"factual":   CategoryFactual,
		"1":         CategoryFactual,
		"HIGH_RISK": CategoryHighRisk,
		"2":         CategoryHighRisk,
	}
	for raw, want := range cases {
		got, err := ParseCategory(raw)
		if err != nil {
			t.Fatalf("ParseCategory(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseCategory(%q)=%s, want %s", raw, got, want)
		}
		if raw != "" && raw != "1" && raw != "2" && got.String() != strings.ToLower(raw) {
			t.Fatalf("String()=%q, want %q", got.String(), strings.ToLower(raw))
		}
	}
	if _, err := ParseCategory("rumor"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestState_String(t *testing.T) {
	if StateSilent.String() != "SILENT" || StateEvaluating.String() != "EVALUATING" || StateIntervening.String() != "INTERVENING" {
		t.Fatalf("unexpected state names")
	}
	if State(99).String() != "UNKNOWN" {
		t.Fatalf("State(99)=%q", State(99).String())
	}
}

func TestClassifyUtterance(t *testing.T) {
	cases := []struct {
		text string
		want Format
	}{
		{CorrectionUtterance("one plus one equals two"), FormatCorrection},
		{"  correction: that statement is inaccurate. Water is H2O.", FormatCorrection},
		{SafetyAlertUtterance("burn treatment", "use cool running water"), FormatSafetyAlert},
		{"I think that's wrong.", FormatNone},
		{"", FormatNone},
	}
	for _, tc := range cases {
		if got := ClassifyUtterance(tc.text); got != tc.want {
			t.Fatalf("ClassifyUtterance(%q)=%q, want %q", tc.text, got, tc.want)
		}
	}
}
