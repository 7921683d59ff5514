package citations

// indelDistance computes the minimum number of insertions and deletions
// required to turn a into b (a Levenshtein variant where substitution costs
// two, so it is never cheaper than a delete plus an insert). Works on runes so
// accented filenames compare correctly.
func indelDistance(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)

	lenA := len(runesA)
	lenB := len(runesB)

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	matrix := make([][]int, lenA+1)
	for i := range matrix {
		matrix[i] = make([]int, lenB+1)
	}

	for i := 0; i <= lenA; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= lenB; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= lenA; i++ {
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 2
			}

			deletion := matrix[i-1][j] + 1
			insertion := matrix[i][j-1] + 1
			substitution := matrix[i-1][j-1] + cost

			matrix[i][j] = min3(deletion, insertion, substitution)
		}
	}

	return matrix[lenA][lenB]
}

// Ratio scores the similarity of two strings on a 0-100 scale, where 100
// means identical. The normalization matches the classic ratio scorer:
// 100 * (1 - distance / (len(a) + len(b))).
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}

	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}

	dist := indelDistance(a, b)
	return 100 * (1 - float64(dist)/float64(total))
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
