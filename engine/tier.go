package engine

import "fmt"

// Tier is the severity classification assigned to a scored event. Strict is a
// terminal escalation that bypasses the numeric threshold; Normal requires the
// score to reach the configured threshold.
type Tier int

const (
	TierNone Tier = iota
	TierNormal
	TierStrict
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierNormal:
		return "normal"
	case TierStrict:
		return "strict"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

func repeatTrigger(count, distinctChannels int) string {
	return fmt.Sprintf("repeat(%d)/cross(%d)", count, distinctChannels)
}
