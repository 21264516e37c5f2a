package ir

import (
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// CanonicalString NFC-normalises s. All canonical keys pass through here
// so that composed and decomposed spellings compare equal.
func CanonicalString(s string) string {
	return norm.NFC.String(s)
}

// ValueKeys returns the sorted, de-duplicated canonical keys of items.
func ValueKeys(items []DataItem) []string {
	seen := make(map[string]struct{}, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		k := item.CanonicalKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	SortCanonical(keys)
	return keys
}

// SameValueSet reports whether a and b contain the same values,
// ignoring order and duplicates.
func SameValueSet(a, b []DataItem) bool {
	return slices.Equal(ValueKeys(a), ValueKeys(b))
}

// SortCanonical sorts keys by UTF-16 code units, the ordering used for
// every hashed or persisted canonical list.
func SortCanonical(keys []string) {
	slices.SortFunc(keys, compareUTF16)
}

// compareUTF16 compares strings by UTF-16 code units. Plain string
// comparison orders by UTF-8 bytes, which differs for supplementary
// characters.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
