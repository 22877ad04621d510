package tools

import (
	"strings"
	"testing"
)

func TestIsHiddenRecognizesAllRanges(t *testing.T) {
	samples := []rune{0xE0000, 0x200B, 0x2028, 0x205F, 0xFFF0, 0xFFFE}
	for _, r := range samples {
		if !isHidden(r) {
			t.Errorf("char U+%X should be hidden", r)
		}
	}
	for _, r := range []rune{'a', '你', 0x03A9, 0xFFFD} {
		if isHidden(r) {
			t.Errorf("char %q should not be hidden", r)
		}
	}
}

func TestSanitizeKeepsVisibleTextIntact(t *testing.T) {
	visible := "Rust > C"
	if got := sanitizeHiddenChars(visible); got != visible {
		t.Errorf("got %q, want %q", got, visible)
	}
}

func TestSanitizeHandlesLargeMixture(t *testing.T) {
	visibleBlock := "abcXYZ"
	hiddenBlock := "​\U000E0000"
	var big strings.Builder
	for i := 0; i < 50000; i++ {
		big.WriteString(visibleBlock)
		big.WriteString(hiddenBlock)
	}

	result := sanitizeHiddenChars(big.String())
	if len(result) != 50000*len(visibleBlock) {
		t.Errorf("got len %d, want %d", len(result), 50000*len(visibleBlock))
	}
	for _, r := range result {
		if isHidden(r) {
			t.Errorf("result still contains hidden char U+%X", r)
		}
	}
}
