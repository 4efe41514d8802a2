package domain

import (
	"errors"
	"fmt"
)

// Default threshold values.
const (
	DefaultYellowThreshold = 80
	DefaultGreenThreshold  = 90
)

var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// ThresholdConfig holds the percent cutoffs that color a coverage value.
type ThresholdConfig struct {
	Yellow                int  `json:"yellow"`
	Green                 int  `json:"green"`
	NegativeCoverageIsRed bool `json:"negativeCoverageIsRed"`
}

// DefaultThresholds returns 80/90 with the negative rule disabled.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{Yellow: DefaultYellowThreshold, Green: DefaultGreenThreshold}
}

// Validate checks both cutoffs are percentages and yellow does not exceed green.
func (t ThresholdConfig) Validate() error {
	if t.Yellow < 0 || t.Yellow > 100 || t.Green < 0 || t.Green > 100 {
		return ErrInvalidThreshold
	}
	if t.Yellow > t.Green {
		return fmt.Errorf("yellow threshold %d is above green threshold %d", t.Yellow, t.Green)
	}
	return nil
}

// ColorTier is the traffic-light bucket of a coverage value.
type ColorTier int

const (
	TierRed ColorTier = iota
	TierYellow
	TierGreen
)

func (c ColorTier) String() string {
	switch c {
	case TierRed:
		return "red"
	case TierYellow:
		return "yellow"
	default:
		return "green"
	}
}

// Token returns the color name understood by badge endpoints. Green is
// "brightgreen" unless plainGreen is set.
func (c ColorTier) Token(plainGreen bool) string {
	switch c {
	case TierRed:
		return "red"
	case TierYellow:
		return "yellow"
	default:
		if plainGreen {
			return "green"
		}
		return "brightgreen"
	}
}

// ColorTierFor buckets a whole coverage percent. A value equal to a cutoff is
// not below it. With NegativeCoverageIsRed any decrease that is still under
// the green cutoff is red.
func ColorTierFor(currentPercent int, cfg ThresholdConfig, decreased bool) ColorTier {
	switch {
	case cfg.NegativeCoverageIsRed && decreased && currentPercent < cfg.Green:
		return TierRed
	case currentPercent < cfg.Yellow:
		return TierRed
	case currentPercent < cfg.Green:
		return TierYellow
	default:
		return TierGreen
	}
}
