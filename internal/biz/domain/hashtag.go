package domain

import "strings"

// Hashtags may contain Kanji, Hiragana, Katakana, full-width alphanumerics
// and the usual word characters, and start with either # or full-width ＃.
// The rune ranges below cover the vast majority of real usage.

const maxHashtagScanLength = 25_000

func isHashtagRune(r rune) bool {
	switch {
	case r == '_',
		r >= '0' && r <= '9',
		r >= 'a' && r <= 'z',
		r >= 'A' && r <= 'Z':
		return true
	case r >= 0x3040 && r <= 0x309f: // hiragana
		return true
	case r >= 0x30a0 && r <= 0x30ff: // katakana
		return true
	case r >= 0x4e00 && r <= 0x9faf: // kanji
		return true
	case r == 0x3005, r == 0x303b, r == 0x309d, r == 0x309e, r == 0x30fd, r == 0x30fe: // iteration marks
		return true
	case r >= 0xff10 && r <= 0xff19, r >= 0xff21 && r <= 0xff3a, r >= 0xff41 && r <= 0xff5a: // full-width alnum
		return true
	}
	return false
}

// ExtractHashtags returns the lowercased, de-duplicated hashtags found in
// text, without their prefix. Only the first 25k characters are considered.
func ExtractHashtags(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) > maxHashtagScanLength {
		text = text[:maxHashtagScanLength]
	}

	var tags []string
	seen := make(map[string]struct{})
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '#' && runes[i] != '＃' {
			continue
		}
		j := i + 1
		for j < len(runes) && isHashtagRune(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		tag := strings.ToLower(string(runes[i+1 : j]))
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
		i = j - 1
	}
	return tags
}
