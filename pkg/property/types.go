package property

import (
	"fmt"
	"strings"
)

// LevelOfDetail classifies how prominently a property is shown to users.
// A view configured for a level shows every property at or below it.
type LevelOfDetail int

const (
	Minimal LevelOfDetail = iota
	Detailed
	All
)

func (l LevelOfDetail) String() string {
	switch l {
	case Minimal:
		return "minimal"
	case Detailed:
		return "detailed"
	case All:
		return "all"
	default:
		return fmt.Sprintf("LevelOfDetail(%d)", int(l))
	}
}

// ParseLevelOfDetail parses the String form of a level. Unknown text yields Minimal.
func ParseLevelOfDetail(s string) LevelOfDetail {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detailed":
		return Detailed
	case "all":
		return All
	default:
		return Minimal
	}
}

// Vec2 is a two-component float vector value.
type Vec2 [2]float64

// IVec2 is a two-component integer vector value.
type IVec2 [2]int

// Color is an RGBA colour value with components in [0,1].
type Color [4]float64
