package handlers

import (
	"strconv"
	"strings"
)

// Descending keyword ladders: earlier entries outrank later ones. Option
// labels are matched by substring, so "Expert (10+ years)" ranks as expert.
var (
	skillLadder = []string{
		"expert", "advanced", "proficient", "intermediate", "beginner", "novice", "none",
	}
	languageLadder = []string{
		"native", "bilingual", "fluent", "professional", "conversational", "basic", "none",
	}
)

// pickHighest returns the index of the highest-ranked label. Ladder rank
// decides first; among labels of equal rank (or when the ladder names
// nothing) the largest embedded number wins. -1 when labels is empty.
func pickHighest(labels []string, ladder []string) int {
	best := -1
	bestRank := len(ladder) + 1
	bestNum := -1 << 62

	for i, label := range labels {
		lo := strings.ToLower(label)
		rank := len(ladder) // unranked sorts after every ladder entry
		for r, kw := range ladder {
			if strings.Contains(lo, kw) {
				rank = r
				break
			}
		}
		num := embeddedNumber(lo)

		switch {
		case best < 0,
			rank < bestRank,
			rank == bestRank && num > bestNum:
			best, bestRank, bestNum = i, rank, num
		}
	}
	return best
}

// embeddedNumber extracts the first integer of s, or a large negative value
// when there is none so numberless labels lose numeric tiebreaks.
func embeddedNumber(s string) int {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return -1 << 62
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return -1 << 62
	}
	return n
}
