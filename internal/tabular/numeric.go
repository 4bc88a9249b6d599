package tabular

import "strconv"

// ParseNumber applies the cell coercion rule to a trimmed field. It
// returns the numeric value and true only when s matches the
// numeric-literal grammar below; everything else stays a string cell.
// Grammar-valid literals whose magnitude overflows float64 are also
// rejected so every numeric cell is finite and JSON-representable.
func ParseNumber(s string) (float64, bool) {
	if !isNumericLiteral(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isNumericLiteral reports whether s matches
//
//	[+-]? ( digits ( "." digits? )? | "." digits ) ( [eE] [+-]? digits )?
//
// strconv.ParseFloat alone is too permissive for the cell contract: it
// also accepts "Inf", "NaN", hex floats and digit separators.
func isNumericLiteral(s string) bool {
	i, n := 0, len(s)
	if n == 0 {
		return false
	}
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	intDigits := 0
	for i < n && isDigit(s[i]) {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < n && s[i] == '.' {
		i++
		for i < n && isDigit(s[i]) {
			i++
			fracDigits++
		}
	}
	// "1", "1.", "1.5" and ".5" are literals; ".", "+" and "" are not.
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		expDigits := 0
		for i < n && isDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == n
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
