package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Minor Planet Center packed-designator alphabets. base62 encodes cycle
// counts and high number digits; centuries maps the leading letter of a
// packed provisional designator to a century.
const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var centuries = map[byte]int{'I': 1800, 'J': 1900, 'K': 2000}

// UnpackDesignator converts an MPC packed designator to its human-readable
// form: "K13U17O" -> "2013 UO17", "A0345" -> "100345". Strings that do not
// match a packed form are returned unchanged.
func UnpackDesignator(packed string) string {
	packed = strings.TrimSpace(packed)

	// Packed permanent numbers: all digits, or a base-62 leading character
	// followed by four digits for numbers >= 100000.
	if isAllDigits(packed) && packed != "" {
		n, _ := strconv.Atoi(packed)
		return strconv.Itoa(n)
	}
	if len(packed) == 5 && isAllDigits(packed[1:]) {
		if j := strings.IndexByte(base62[10:], packed[0]); j >= 0 {
			tail, _ := strconv.Atoi(packed[1:])
			return strconv.Itoa(100000 + j*10000 + tail)
		}
	}

	// Packed provisional: century letter, 2-digit year, half-month letter,
	// base-62 cycle tens, cycle digit, order letter.
	if len(packed) != 7 {
		return packed
	}
	century, ok := centuries[packed[0]]
	if !ok {
		return packed
	}
	yy, err := strconv.Atoi(packed[1:3])
	if err != nil {
		return packed
	}
	tens := strings.IndexByte(base62, packed[4])
	if tens < 0 || !unicode.IsDigit(rune(packed[5])) {
		return packed
	}
	cycle := tens*10 + int(packed[5]-'0')

	out := fmt.Sprintf("%d %c%c", century+yy, packed[3], packed[6])
	if cycle > 0 {
		out += strconv.Itoa(cycle)
	}
	return out
}

// PackDesignator converts a human-readable designator to MPC packed form:
// "2013 UO17" -> "K13U17O", "100345" -> "A0345". Numbers below 100000 and
// strings that do not match either form are returned unchanged.
func PackDesignator(desig string) string {
	desig = strings.TrimSpace(desig)

	if isAllDigits(desig) && desig != "" {
		n, _ := strconv.Atoi(desig)
		if n < 100000 {
			return desig
		}
		digits := n % 10000
		return fmt.Sprintf("%c%04d", base62[(n-digits)/10000], digits)
	}

	// Provisional "YYYY HL" or "YYYY HLnn", H = half-month letter,
	// L = order letter, nn = cycle count.
	fields := strings.Fields(desig)
	if len(fields) != 2 || len(fields[0]) != 4 || len(fields[1]) < 2 {
		return desig
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return desig
	}
	var centuryLetter byte
	for letter, c := range centuries {
		if year >= c && year < c+100 {
			centuryLetter = letter
		}
	}
	if centuryLetter == 0 {
		return desig
	}

	letters := fields[1][:2]
	cycle := 0
	if len(fields[1]) > 2 {
		if cycle, err = strconv.Atoi(fields[1][2:]); err != nil {
			return desig
		}
	}
	if cycle >= len(base62)*10 {
		return desig
	}
	return fmt.Sprintf("%c%02d%c%c%d%c",
		centuryLetter, year%100, letters[0], base62[cycle/10], cycle%10, letters[1])
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
