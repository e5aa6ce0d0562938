// Package validation holds the input checks shared by the lookup, appointment
// and beneficiary flows. Every check runs before any network or database call
// and reports a user-facing message naming the invalid field.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the dd/MM/yyyy format the upstream provider uses for
// availability windows.
const DateLayout = "02/01/2006"

// Error is a rejected input. Message is safe to show to end users.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(field, msg string) *Error { return &Error{Field: field, Message: msg} }

// RFC 4122 versions 1-5 with the 8/9/a/b variant nibble.
var uuidRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// dd/MM/yyyy shape only; calendar validity is checked by ParseDate.
var dateRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

var timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// IsUUID reports whether s is a well-formed provider UUID.
func IsUUID(s string) bool { return uuidRe.MatchString(s) }

// UUID returns a *Error carrying msg when s is not a well-formed UUID.
func UUID(field, s, msg string) error {
	if !IsUUID(s) {
		return newError(field, msg)
	}
	return nil
}

// IsDate reports whether s matches dd/MM/yyyy and names a real calendar day.
func IsDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses a dd/MM/yyyy string at midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	if !dateRe.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t as dd/MM/yyyy.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// IsZeroPaddedTime reports whether s is a 24h HH:mm string. Slot ordering
// compares times as strings and is only chronological for this shape.
func IsZeroPaddedTime(s string) bool { return timeRe.MatchString(s) }

// DateRange validates a dd/MM/yyyy window and that initial is not after final.
func DateRange(initial, final string) (time.Time, time.Time, error) {
	from, ok := ParseDate(initial)
	if !ok {
		return time.Time{}, time.Time{}, newError("dateInitial", "Data inicial inválida (formato: dd/MM/yyyy)")
	}
	to, ok := ParseDate(final)
	if !ok {
		return time.Time{}, time.Time{}, newError("dateFinal", "Data final inválida (formato: dd/MM/yyyy)")
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, newError("dateInitial", "Data inicial não pode ser posterior à data final")
	}
	return from, to, nil
}

// NormalizeCPF strips everything but digits.
func NormalizeCPF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CPF normalizes s and rejects anything that is not exactly 11 digits.
func CPF(s string) (string, error) {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return "", newError("cpf", "CPF inválido")
	}
	return cpf, nil
}

// HasValidCPFCheckDigits applies the mod-11 check digit algorithm. Lookups do
// not require it; registration does.
func HasValidCPFCheckDigits(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}
	digit := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		r := (sum * 10) % 11
		if r == 10 {
			r = 0
		}
		return r
	}
	return digit(9) == int(cpf[9]-'0') && digit(10) == int(cpf[10]-'0')
}
