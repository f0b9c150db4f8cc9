package sentinel

// Feature is one operator-facing line describing how the monitor behaves.
type Feature struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Example pairs an input statement with the behavior the policy prescribes.
type Example struct {
	Icon     string `json:"icon"`
	Title    string `json:"title"`
	Input    string `json:"input"`
	Behavior string `json:"behavior"`
}

// Description is everything an operator needs to understand the monitor.
type Description struct {
	Title         string        `json:"title"`
	Model         string        `json:"model"`
	PolicyVersion string        `json:"policy_version"`
	Features      []Feature     `json:"features"`
	Examples      []Example     `json:"examples"`
	Config        SessionConfig `json:"config"`
}

// Describe returns the operator description. Like NewSessionConfig, every call
// returns fresh values.
func Describe() Description {
	return Description{
		Title:         "Proactive Audio 🔊✨",
		Model:         SelectModel(),
		PolicyVersion: PolicyVersion,
		Features: []Feature{
			{
				Icon:        "🤫",
				Title:       "Listens Silently",
				Description: "Operates passively in your audio environment and is designed to be completely non-intrusive.",
			},
			{
				Icon:        "🎯",
				Title:       "Activates on Specific Triggers",
				Description: "It will only speak when it detects a verifiable factual inaccuracy or potentially harmful misinformation regarding health ❤️‍🩹, finance 💰, or civic safety 🗳️.",
			},
			{
				Icon:        "📢",
				Title:       "Delivers a Brief Alert",
				Description: "When triggered, it provides a short, neutral notification that the statement is incorrect.",
			},
			{
				Icon:        "🔇",
				Title:       "Returns to Silence",
				Description: "It does not engage in conversation and immediately goes quiet, ensuring your listening experience remains uninterrupted while providing a powerful layer of security against falsehoods.",
			},
		},
		Examples: []Example{
			{
				Icon:     "✅",
				Title:    "Positive Statement (No Trigger)",
				Input:    "Emmanuel Macron is the current president of France.",
				Behavior: "🤫 [Remains completely silent]",
			},
			{
				Icon:     "❌",
				Title:    "Negative Statement (Trigger Met)",
				Input:    "Actually, 1+1 = 3, that's a known fact.",
				Behavior: "📢 \"" + CorrectionUtterance("one plus one equals two") + "\" 🔇",
			},
		},
		Config: NewSessionConfig(),
	}
}
