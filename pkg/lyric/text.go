package lyric

import (
	"strings"
	"unicode"
)

var rtlScripts = []*unicode.RangeTable{
	unicode.Arabic,
	unicode.Hebrew,
	unicode.Syriac,
	unicode.Thaana,
	unicode.Nko,
	unicode.Samaritan,
	unicode.Mandaic,
}

// StringSimilarity returns the Sørensen–Dice coefficient of the n-grams of a
// and b, in [0, 1]. Strings shorter than n score 0.
func StringSimilarity(a, b string, n int, caseSensitive bool) float64 {
	if n <= 0 {
		n = 2
	}
	if !caseSensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < n || len(rb) < n {
		return 0
	}

	grams := make(map[string]int, len(ra))
	for i := 0; i+n <= len(ra); i++ {
		grams[string(ra[i:i+n])]++
	}

	matches := 0
	for i := 0; i+n <= len(rb); i++ {
		g := string(rb[i : i+n])
		if grams[g] > 0 {
			grams[g]--
			matches++
		}
	}

	return float64(matches*2) / float64(len(ra)+len(rb)-(n-1)*2)
}

// IsRTL 判断文本中是否包含从右到左书写的文字
func IsRTL(s string) bool {
	for _, r := range s {
		if unicode.IsOneOf(rtlScripts, r) {
			return true
		}
	}
	return false
}

// ContainsNonLatin reports whether s has a letter outside the Latin script.
// Digits, punctuation and emoji are not letters and never count.
func ContainsNonLatin(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
