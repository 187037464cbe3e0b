package matcher

// levenshtein computes the edit distance between two strings over runes, so
// one Hangul syllable counts as one edit.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if rb[i-1] == ra[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j-1]+cost, curr[j-1]+1, prev[j]+1)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

// similarity maps edit distance to [0,1]: 1 means identical, 0 means every
// character of the longer string differs.
func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > la {
		longer = lb
	}
	if longer == 0 {
		return 1.0
	}
	return float64(longer-levenshtein(a, b)) / float64(longer)
}
