package matching

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/erp"
)

// Name-similarity bands feeding the graded name weights.
const (
	nameStrongSimilarity = 80
	nameMediumSimilarity = 60
	nameWeakSimilarity   = 40
)

// Similarity rates two strings 0-100 on normalized text: identical → 100,
// containment → length ratio, otherwise the overlap ratio of words longer
// than two characters.
func Similarity(a, b string) int {
	s1 := Normalize(a)
	s2 := Normalize(b)

	if s1 == s2 {
		if s1 == "" {
			return 0
		}
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}

	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		shorter, longer := len(s1), len(s2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return roundRatio(shorter, longer)
	}

	words1 := longWords(s1)
	words2 := longWords(s2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}
	matched := 0
	for _, w1 := range words1 {
		for _, w2 := range words2 {
			if strings.Contains(w1, w2) || strings.Contains(w2, w1) {
				matched++
				break
			}
		}
	}
	denom := len(words1)
	if len(words2) > denom {
		denom = len(words2)
	}
	return roundRatio(matched, denom)
}

func longWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func roundRatio(num, denom int) int {
	if denom == 0 {
		return 0
	}
	return int(float64(num)/float64(denom)*100 + 0.5)
}

// Score rates one customer/candidate pair. It returns the capped score and a
// human-readable trace of the signals that fired.
func Score(w Weights, cust erp.Customer, cand Candidate) (int, string) {
	score := 0
	var reasons []string

	custName := Normalize(cust.DisplayName())
	candName := Normalize(cand.Name)
	candLocation := Normalize(cand.LocationName)

	if custName != "" && (custName == candName || custName == candLocation) {
		score += w.NameExact
		reasons = append(reasons, "exact name")
	} else {
		sim := Similarity(cust.DisplayName(), cand.Name)
		if locSim := Similarity(cust.DisplayName(), cand.LocationName); locSim > sim {
			sim = locSim
		}
		switch {
		case sim >= nameStrongSimilarity:
			score += w.NameStrong
			reasons = append(reasons, fmt.Sprintf("similar name (%d%%)", sim))
		case sim >= nameMediumSimilarity:
			score += w.NameMedium
			reasons = append(reasons, fmt.Sprintf("partial name (%d%%)", sim))
		case sim >= nameWeakSimilarity:
			score += w.NameWeak
			reasons = append(reasons, fmt.Sprintf("weak name (%d%%)", sim))
		}
	}

	custCity := Normalize(cust.City)
	candCity := Normalize(cand.City)
	if custCity != "" && candCity != "" && custCity == candCity {
		score += w.City
		reasons = append(reasons, "same city")

		custState := Normalize(cust.State)
		candState := Normalize(cand.State)
		if custState != "" && candState != "" && custState == candState {
			score += w.State
			reasons = append(reasons, "same state")
		}
	}

	if cust.Street != "" && cand.Street != "" {
		if Similarity(cust.Street, cand.Street) >= w.StreetSimilarity {
			score += w.Street
			reasons = append(reasons, "same street")

			custNumber := Normalize(cust.Number)
			candNumber := Normalize(cand.Number)
			if custNumber != "" && candNumber != "" && custNumber == candNumber {
				score += w.StreetNumber
				reasons = append(reasons, "same number")
			}
		}
	}

	custPostal := digitsOnly(cust.PostalCode)
	candPostal := digitsOnly(cand.PostalCode)
	if len(custPostal) >= 5 && len(candPostal) >= 5 {
		switch {
		case custPostal == candPostal:
			score += w.PostalExact
			reasons = append(reasons, "exact postal code")
		case custPostal[:5] == candPostal[:5]:
			score += w.PostalPrefix
			reasons = append(reasons, "similar postal code")
		}
	}

	custDoc := digitsOnly(cust.Document)
	candDoc := digitsOnly(cand.Document)
	if custDoc != "" && candDoc != "" && custDoc == candDoc {
		score += w.Document
		reasons = append(reasons, "same document")
	}

	if score > 100 {
		score = 100
	}
	reason := "no matching signals"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, " + ")
	}
	return score, reason
}
