package domain

import "encoding/json"

// Palette assigns a fill color to each level plus a default for unclassified
// counties.
type Palette struct {
	Level1  string `json:"1"`
	Level2  string `json:"2"`
	Level3  string `json:"3"`
	Level4  string `json:"4"`
	Default string `json:"default"`
}

// DefaultPalette is the blue ramp used by the map, darkest for Level IV.
var DefaultPalette = Palette{
	Level1:  "#DBEAFE",
	Level2:  "#60A5FA",
	Level3:  "#2563EB",
	Level4:  "#1E3A8A",
	Default: "#F3F4F6",
}

// Color returns the palette entry for l, or Default for LevelNone.
func (p Palette) Color(l Level) string {
	switch l {
	case Level1:
		return p.Level1
	case Level2:
		return p.Level2
	case Level3:
		return p.Level3
	case Level4:
		return p.Level4
	default:
		return p.Default
	}
}

// StyleBranch is one (level == N → color) arm of a StyleRule.
type StyleBranch struct {
	Level Level
	Color string
}

// StyleRule is an ordered fill-color rule: the first branch whose level
// matches wins, otherwise Default applies. Levels are mutually exclusive so
// the order affects readability only.
type StyleRule struct {
	Branches []StyleBranch
	Default  string
}

// BuildStyleRule compiles a palette into a rule with all four level branches,
// highest first, and a default branch.
func BuildStyleRule(p Palette) StyleRule {
	branches := make([]StyleBranch, 0, len(Levels))
	for _, l := range Levels {
		branches = append(branches, StyleBranch{Level: l, Color: p.Color(l)})
	}
	return StyleRule{Branches: branches, Default: p.Default}
}

// Color evaluates the rule for a single level.
func (r StyleRule) Color(l Level) string {
	for _, b := range r.Branches {
		if b.Level == l {
			return b.Color
		}
	}
	return r.Default
}

// Expression renders the rule as a Mapbox GL "case" expression:
//
//	["case", ["==", ["get", "level"], 4], "#1E3A8A", ..., "#F3F4F6"]
func (r StyleRule) Expression() []any {
	expr := make([]any, 0, 2+2*len(r.Branches))
	expr = append(expr, "case")
	for _, b := range r.Branches {
		expr = append(expr,
			[]any{"==", []any{"get", PropLevel}, int(b.Level)},
			b.Color,
		)
	}
	return append(expr, r.Default)
}

// MarshalJSON encodes the rule as its Mapbox expression.
func (r StyleRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Expression())
}

// LegendEntry describes one swatch of the map legend.
type LegendEntry struct {
	Level Level  `json:"level"`
	Label string `json:"label"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Legend lists the swatches for a rule, Level I first and the default last.
func Legend(r StyleRule) []LegendEntry {
	entries := make([]LegendEntry, 0, len(Levels)+1)
	for _, l := range []Level{Level1, Level2, Level3, Level4} {
		entries = append(entries, LegendEntry{
			Level: l,
			Label: "Level " + l.Roman(),
			Name:  l.Name(),
			Color: r.Color(l),
		})
	}
	return append(entries, LegendEntry{
		Level: LevelNone,
		Label: "No data",
		Name:  LevelNone.Name(),
		Color: r.Default,
	})
}
