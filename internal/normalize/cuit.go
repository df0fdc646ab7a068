package normalize

// cuitWeights are the mod-11 weights applied to the first ten digits.
var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidCUIT reports whether id is a structurally valid 11-digit tax
// identifier. Non-digit characters are stripped first; anything that is
// not exactly 11 digits afterwards is invalid.
func ValidCUIT(id string) bool {
	digits := Digits(id)
	if len(digits) != 11 {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(digits[i]-'0') * cuitWeights[i]
	}

	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		check = 9
	}

	return check == int(digits[10]-'0')
}

// Digits returns only the decimal digit characters of s, in order.
func Digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
