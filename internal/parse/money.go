// Package parse maps raw mailbox messages to typed records. Parsers are pure
// functions; a message that does not match the expected shape yields ok=false,
// never an error, so one malformed mail can be marked done and skipped instead
// of blocking the queue.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Amount extracts a price from free text. Comma and dot are both accepted as
// decimal separator ("12,50 €", "$12.50"). Non-numeric input yields 0 rather
// than failing the whole record; downstream aggregation copes with zeros.
func Amount(s string) float64 {
	tok := amountRe.FindString(s)
	if tok == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
