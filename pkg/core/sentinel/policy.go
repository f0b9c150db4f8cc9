package sentinel

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PolicyVersion identifies the revision of PolicyDocument. Bump it whenever the
// document text changes so audit records can be correlated with the policy that
// produced them.
const PolicyVersion = "silent-sentinel/2025-09"

// PolicyDocument is the system instruction installed into the remote model. It
// is transmitted verbatim and never parsed locally.
const PolicyDocument = `### Role
You are the "Silent Sentinel," an automated, audio-based fact-checking monitor. Your default state is absolute silence. You exist only to protect the user from objective falsehoods and dangerous misinformation. You are not a conversational assistant; you are a safety filter.

### Core Operating Rules
1.  **Absolute Silence is Default:** Do not greet the user, confirm correct statements, engage in small talk, or fill "dead air." If no trigger conditions are met, generate **no output**.
2.  **Strict Trigger Adherence:** Intervene **ONLY** when a statement explicitly meets the definition of Category 1 or Category 2 below.
3.  **Negative Constraint (Do Not Intervene):** Do not correct opinions, subjective preferences, future predictions, obvious hyperbole, or topics where there is no established consensus.
4.  **Audio-Optimized Response:** When triggered, your response must be immediate, succinct, neutral, and authoritative. Deliver the correction and immediately return to silence.

---

### Trigger Conditions

Break silence only for the following two categories:

#### Category 1: Verifiably False Objective Information
Statements that contradict established, demonstrable facts, consensus reality or mathematically incorrect.
*   *Examples:* Wrong historical dates/events, incorrect scientific constants, calculation error, or misstated data from explicitly cited sources.

#### Category 2: High-Risk Misinformation (Immediate Priority)
Information that, if acted upon, could cause tangible harm to health, finances, or freedom.

*   **Medical & Health:**
    *   Promoting unproven/dangerous "cures" or treatments.
    *   Stating specific prescription dosages or recommending off-label use without qualifications.
    *   Active discouragement of proven, safe medical procedures (e.g., anti-vaccination misinformation).
    *   Dangerous first-aid or emergency advice.
*   **Financial:** Endorsing definable scams (pyramid schemes, phishing) or promising guaranteed returns on volatile investments.
*   **Personal & Public Safety:** Incitement to violence, promotion of illegal acts, or spreading panic-inducing conspiracy theories.
*   **Civic Integrity:** False claims regarding *how, when, or where* to vote or participate in vital civic processes.

---

### Response Protocol

When, and **only when**, a trigger is detected, execute the following sequence:

1.  **Internal Verification:** Ensure your correction is based on irrefutable consensus or authoritative guidelines (e.g., CDC, established history). If you are unsure, remain silent.
2.  **Interruption:** Speak immediately using one of the following concise formats tailored to the category.

#### Format A: For Category 1 (Factual Errors)
> "Correction: That statement is inaccurate. [Insert concise, correct fact]."
> *Example: "Correction: That is inaccurate. Water is composed of two hydrogen atoms and one oxygen atom."*

#### Format B: For Category 2 (High-Risk Misinformation)
> "Safety Alert: The previous statement regarding [Topic] contradicts established safety guidelines and may be harmful. [Insert brief, authoritative consensus or warning]."
> *Example: "Safety Alert: The previous statement regarding burn treatment is dangerous. Do not apply butter to burns; use cool running water."*

3.  **Return to Silence:** Immediately terminate output after the correction.`

const (
	// CorrectionPrefix opens every Format A utterance.
	CorrectionPrefix = "Correction: That statement is inaccurate."
	// SafetyAlertPrefix opens every Format B utterance.
	SafetyAlertPrefix = "Safety Alert: The previous statement regarding"

	safetyAlertBody = "contradicts established safety guidelines and may be harmful."
)

// State is a position in the monitor's behavioral state machine.
type State int

const (
	// StateSilent is the initial state and the state returned to after every
	// intervention. Nothing is emitted.
	StateSilent State = iota
	// StateEvaluating is the implicit per-statement decision point.
	StateEvaluating
	// StateIntervening lasts for exactly one utterance.
	StateIntervening
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateSilent:
		return "SILENT"
	case StateEvaluating:
		return "EVALUATING"
	case StateIntervening:
		return "INTERVENING"
	default:
		return "UNKNOWN"
	}
}

// Category is the trigger category a statement falls into.
type Category int

const (
	CategoryNone Category = iota
	// CategoryFactual is an objective, verifiable falsehood.
	CategoryFactual
	// CategoryHighRisk is misinformation that could cause tangible harm if acted upon.
	CategoryHighRisk
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryFactual:
		return "factual"
	case CategoryHighRisk:
		return "high_risk"
	default:
		return "unknown"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return CategoryNone, nil
	case "factual", "1":
		return CategoryFactual, nil
	case "high_risk", "2":
		return CategoryHighRisk, nil
	default:
		return CategoryNone, fmt.Errorf("unknown trigger category %q", raw)
	}
}

// RiskArea names the harm domain of a high-risk statement.
type RiskArea string

const (
	RiskMedical   RiskArea = "medical"
	RiskFinancial RiskArea = "financial"
	RiskSafety    RiskArea = "public_safety"
	RiskCivic     RiskArea = "civic"
)

// Phrase returns the spoken form of the risk area.
func (r RiskArea) Phrase() string {
	switch r {
	case RiskMedical:
		return "medical advice"
	case RiskFinancial:
		return "financial advice"
	case RiskSafety:
		return "public safety"
	case RiskCivic:
		return "civic information"
	}
	return strings.ReplaceAll(string(r), "_", " ")
}

// Kind describes the rhetorical nature of a statement. Everything other than
// KindClaim is covered by the policy's negative constraint.
type Kind string

const (
	KindClaim       Kind = "claim"
	KindOpinion     Kind = "opinion"
	KindPreference  Kind = "preference"
	KindPrediction  Kind = "prediction"
	KindHyperbole   Kind = "hyperbole"
	KindNoConsensus Kind = "no_consensus"
)

// Exempt reports whether statements of this kind must never trigger an intervention.
func (k Kind) Exempt() bool {
	switch k {
	case "", KindClaim:
		return false
	default:
		return true
	}
}

// Format selects the utterance template used while intervening.
type Format string

const (
	FormatNone        Format = ""
	FormatCorrection  Format = "correction"
	FormatSafetyAlert Format = "safety_alert"
)

// Verdict is the classification of a single statement. Producing a Verdict is the
// remote model's job; Decide only encodes what must follow from it.
type Verdict struct {
	Kind       Kind
	Category   Category
	Risk       RiskArea
	Topic      string
	Correction string
	// Confident is false when the correction cannot be backed by irrefutable
	// consensus or an authoritative guideline.
	Confident bool
}

// Decision is the outcome of evaluating one statement.
type Decision struct {
	Trajectory []State
	Format     Format
	Utterance  string
}

// Speaks reports whether the decision produces an utterance.
func (d Decision) Speaks() bool { return d.Utterance != "" }

// Decide applies the policy's transition rule to a single verdict. At most one
// utterance is produced and the trajectory always ends in StateSilent.
func Decide(v Verdict) Decision {
	silent := Decision{Trajectory: []State{StateEvaluating, StateSilent}}

	if v.Kind.Exempt() || !v.Confident {
		return silent
	}
	correction := strings.TrimSpace(v.Correction)
	if correction == "" {
		return silent
	}

	var d Decision
	switch v.Category {
	case CategoryFactual:
		d.Format = FormatCorrection
		d.Utterance = CorrectionUtterance(correction)
	case CategoryHighRisk:
		topic := strings.TrimSpace(v.Topic)
		if topic == "" {
			topic = v.Risk.Phrase()
		}
		if topic == "" {
			return silent
		}
		d.Format = FormatSafetyAlert
		d.Utterance = SafetyAlertUtterance(topic, correction)
	default:
		return silent
	}
	d.Trajectory = []State{StateEvaluating, StateIntervening, StateSilent}
	return d
}

// CorrectionUtterance renders Format A.
func CorrectionUtterance(fact string) string {
	return CorrectionPrefix + " " + sentence(fact)
}

// SafetyAlertUtterance renders Format B.
func SafetyAlertUtterance(topic, guidance string) string {
	return fmt.Sprintf("%s %s %s %s", SafetyAlertPrefix, strings.TrimSpace(topic), safetyAlertBody, sentence(guidance))
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if r, n := utf8.DecodeRuneInString(s); r != utf8.RuneError {
		s = string(unicode.ToUpper(r)) + s[n:]
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// ClassifyUtterance reports which template a spoken intervention follows, judged
// by its opening words. Transcripts from the remote model may differ in case and
// leading whitespace.
func ClassifyUtterance(text string) Format {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return FormatNone
	case strings.HasPrefix(t, strings.ToLower(CorrectionPrefix)):
		return FormatCorrection
	case strings.HasPrefix(t, strings.ToLower(SafetyAlertPrefix)):
		return FormatSafetyAlert
	default:
		return FormatNone
	}
}
