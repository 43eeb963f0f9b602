package domain

import "fmt"

// Level is a prevailing wage level. LevelNone means the county is
// unclassified: either no wage data exists or the wage is below Level I.
type Level int

const (
	LevelNone Level = iota
	Level1
	Level2
	Level3
	Level4
)

// Levels lists the classified levels from highest to lowest, the order in
// which thresholds are tested.
var Levels = []Level{Level4, Level3, Level2, Level1}

// Valid reports whether l is one of Level1 through Level4.
func (l Level) Valid() bool {
	return l >= Level1 && l <= Level4
}

// Roman returns the DOL numeral for the level ("I" through "IV").
func (l Level) Roman() string {
	switch l {
	case Level1:
		return "I"
	case Level2:
		return "II"
	case Level3:
		return "III"
	case Level4:
		return "IV"
	default:
		return ""
	}
}

// Name returns the user-facing description of the level.
func (l Level) Name() string {
	switch l {
	case Level1:
		return "Entry Level"
	case Level2:
		return "Qualified"
	case Level3:
		return "Experienced"
	case Level4:
		return "Fully Competent"
	default:
		return "Below Level I"
	}
}

func (l Level) String() string {
	if !l.Valid() {
		return "unclassified"
	}
	return fmt.Sprintf("level %s", l.Roman())
}
