// Package domain classifies U.S. counties against Department of Labor
// prevailing wage levels for a single occupation and salary.
//
// # Data Sources
//
// County geometry comes from a Census cartographic boundary GeoJSON file.
// Each feature carries two identity properties:
//
//	STATEFP  two-digit state FIPS code as a string, e.g. "17" (Illinois)
//	NAME     plain county name without the word "County", e.g. "Cook"
//
// Wage tables come from the OFLC Foreign Labor Certification data release,
// preprocessed into one JSON object per SOC code (see cmd/buildtables):
//
//	{"IL|cook": {"I": 20.0, "II": 30.0, "III": 45.0, "IV": 60.0}, ...}
//
// Values are hourly USD rates. Any subset of levels may be present.
//
// # Join Keys
//
// Geometry and wage rows are joined by identity, never by geometry:
//
//	"<state abbreviation>|<Normalize(name + " County")>"  →  "IL|cook"
//
// [Normalize] is a cross-system contract. The table producer and the map
// consumer must run the same function; any drift silently drops counties
// from the map rather than failing loudly.
//
// # Classification
//
// An annual salary is converted to an hourly rate by dividing by
// [HoursPerYear] (2080). [Classify] then returns the highest level whose
// threshold the rate meets, checked in the order IV, III, II, I with an
// inclusive boundary:
//
//	{I: 20, II: 30, III: 45, IV: 60}, $45.00/h  →  Level III
//	{IV: 60},                         $45.00/h  →  unclassified
//
// Counties with no table entry and counties below Level I both render with
// the default color. The two cases are intentionally indistinguishable on
// the map.
//
// # Annotation
//
// [Annotate] never mutates the master [Counties] collection. Levels live in
// a side slice indexed by feature position, and the renderable collection is
// built on demand with fresh property maps that share geometry with the
// master.
package domain
