package domain

// CountyDetail is the display payload for a clicked county. It is read back
// from the rendered layer and never fed into classification.
type CountyDetail struct {
	StateFP   string `json:"statefp"`
	State     string `json:"state"`
	Name      string `json:"name"`
	Level     *int   `json:"level,omitempty"`
	LevelName string `json:"level_name"`
	Color     string `json:"color"`
}

// DescribeCounty builds a CountyDetail from a rendered feature's properties.
// Missing values fall back to "Unknown" and "N/A" the way the map popup
// shows them.
func DescribeCounty(props map[string]any, rule StyleRule) CountyDetail {
	d := CountyDetail{Name: "Unknown", State: "N/A"}
	if fp, ok := props[PropStateFP].(string); ok {
		d.StateFP = fp
		if abbr, ok := StateAbbr(fp); ok {
			d.State = abbr
		}
	}
	if n, ok := props[PropName].(string); ok && n != "" {
		d.Name = n
	}

	l, ok := LevelOf(props)
	if ok {
		n := int(l)
		d.Level = &n
	}
	d.LevelName = l.Name()
	d.Color = rule.Color(l)
	return d
}
