package entities

// ModerationCategory is one of the fixed moderation categories.
type ModerationCategory string

const (
	CategorySelfHarm             ModerationCategory = "self-harm"
	CategorySelfHarmIntent       ModerationCategory = "self-harm/intent"
	CategorySelfHarmInstructions ModerationCategory = "self-harm/instructions"
	CategoryViolence             ModerationCategory = "violence"
	CategoryViolenceGraphic      ModerationCategory = "violence/graphic"
	CategorySexual               ModerationCategory = "sexual"
	CategorySexualMinors         ModerationCategory = "sexual/minors"
	CategoryHarassment           ModerationCategory = "harassment"
	CategoryHarassmentThreats    ModerationCategory = "harassment/threatening"
	CategoryHate                 ModerationCategory = "hate"
	CategoryHateThreats          ModerationCategory = "hate/threatening"
)

// ModerationCategories is the fixed category set reported by the
// moderation capability.
var ModerationCategories = []ModerationCategory{
	CategorySelfHarm,
	CategorySelfHarmIntent,
	CategorySelfHarmInstructions,
	CategoryViolence,
	CategoryViolenceGraphic,
	CategorySexual,
	CategorySexualMinors,
	CategoryHarassment,
	CategoryHarassmentThreats,
	CategoryHate,
	CategoryHateThreats,
}

// ModerationResult is the moderation capability's verdict on a block of
// text. Scores are in [0, 1].
type ModerationResult struct {
	Flagged    bool                           `json:"flagged"`
	Categories map[ModerationCategory]bool    `json:"categories"`
	Scores     map[ModerationCategory]float64 `json:"scores"`
}

// RiskLevel is the ordinal safety risk of session content.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity returns the ordinal rank of the risk level, none < low <
// medium < high.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}
