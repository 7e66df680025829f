package country

// CodeFromFlag converts a regional-indicator pair such as 🇮🇳 back to "IN".
func CodeFromFlag(flag string) string {
	rs := []rune(flag)
	if len(rs) != 2 || !isRegionalIndicator(rs[0]) || !isRegionalIndicator(rs[1]) {
		return ""
	}
	return string([]rune{'A' + (rs[0] - regionalIndicatorA), 'A' + (rs[1] - regionalIndicatorA)})
}

func isRegionalIndicator(r rune) bool {
	return r >= regionalIndicatorA && r <= regionalIndicatorZ
}

// ExpandFlags replaces a line that contains flag emoji with the names of the
// flagged regions, so "🇮🇳 🇵🇰" becomes ["India", "Pakistan"]. Lines without
// flags are returned unchanged as a single element.
func ExpandFlags(line string) []string {
	rs := []rune(line)
	var out []string
	found := false
	for i := 0; i+1 < len(rs); i++ {
		if !isRegionalIndicator(rs[i]) || !isRegionalIndicator(rs[i+1]) {
			continue
		}
		found = true
		out = append(out, Name(CodeFromFlag(string(rs[i:i+2]))))
		i++
	}
	if !found {
		return []string{line}
	}
	return out
}
