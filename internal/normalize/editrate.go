package normalize

import (
	"strings"
	"unicode"
)

// EditStats describes how far a corrected text drifted from the dictation
// it was derived from, counted in words.
type EditStats struct {
	Rate          float64 // (Substitutions + Insertions + Deletions) / RefWords
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// EditRate computes word-level edit statistics between a reference text
// (the normalized dictation) and a hypothesis (the model-corrected text).
// Comparison ignores case and punctuation. An empty reference yields a zero
// EditStats.
func EditRate(reference, hypothesis string) EditStats {
	ref := comparableWords(reference)
	hyp := comparableWords(hypothesis)

	n, m := len(ref), len(hyp)
	if n == 0 {
		return EditStats{}
	}

	// cost[i][j] is the edit distance between ref[:i] and hyp[:j].
	cost := make([][]int, n+1)
	for i := range cost {
		cost[i] = make([]int, m+1)
		cost[i][0] = i
	}
	for j := 0; j <= m; j++ {
		cost[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				cost[i][j] = cost[i-1][j-1]
				continue
			}
			cost[i][j] = 1 + min(cost[i-1][j-1], cost[i-1][j], cost[i][j-1])
		}
	}

	var st EditStats
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && cost[i][j] == cost[i-1][j-1]+1:
			st.Substitutions++
			i, j = i-1, j-1
		case i > 0 && cost[i][j] == cost[i-1][j]+1:
			st.Deletions++
			i--
		default:
			st.Insertions++
			j--
		}
	}

	st.RefWords = n
	st.Rate = float64(st.Substitutions+st.Insertions+st.Deletions) / float64(n)
	return st
}

func comparableWords(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
