package domain

import "strings"

const countySuffix = " county"

// Normalize canonicalizes a county display name into the name half of a join
// key: lower-case, every " county" removed, whitespace runs collapsed to a
// single space, trimmed. The wage-table producer must use this exact
// function.
func Normalize(raw string) string {
	s := collapseSpace(strings.ToLower(raw))
	// Removing one occurrence can splice a new one together ("x c countyounty"),
	// so repeat until the string is stable.
	for strings.Contains(s, countySuffix) {
		s = collapseSpace(strings.ReplaceAll(s, countySuffix, ""))
	}
	return s
}

// JoinKey builds the wage-table key for a county name in the given state.
func JoinKey(stateAbbr, countyName string) string {
	return stateAbbr + "|" + Normalize(countyName+" County")
}

// collapseSpace replaces every whitespace run with one space and trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
