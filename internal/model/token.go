package model

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Closing keywords rendered by the feed.
const (
	SoldKeyword     = "Sold!"
	ApprovalKeyword = "Approval!"
)

// TokenKind classifies a status token.
type TokenKind int

const (
	TokenAbsent       TokenKind = iota // No status text rendered
	TokenPrice                         // Live numeric price
	TokenSold                          // "Sold!"
	TokenApproval                      // "Approval!"
	TokenUnrecognized                  // Text present but neither a price nor a keyword
)

func (k TokenKind) String() string {
	switch k {
	case TokenPrice:
		return "price"
	case TokenSold:
		return "sold"
	case TokenApproval:
		return "approval"
	case TokenUnrecognized:
		return "unrecognized"
	default:
		return "absent"
	}
}

// StatusToken is the short-lived text the feed renders for the current lot.
type StatusToken struct {
	Kind   TokenKind
	Raw    string          // Trimmed source text
	Amount decimal.Decimal // Parsed amount for TokenPrice
}

// Absent is the token for a missing or unreadable status element.
var Absent = StatusToken{Kind: TokenAbsent}

// IsClosing reports whether the token signals a closed lot.
func (t StatusToken) IsClosing() bool {
	return t.Kind == TokenSold || t.Kind == TokenApproval
}

// Outcome maps a closing token to its outcome. ok is false for non-closing tokens.
func (t StatusToken) Outcome() (Outcome, bool) {
	switch t.Kind {
	case TokenSold:
		return OutcomeSold, true
	case TokenApproval:
		return OutcomeApproved, true
	}
	return "", false
}

// ParseStatusToken classifies raw feed text. Keywords must match exactly after
// trimming. Text containing a digit is a price when it parses as a US-formatted
// amount; any other non-empty text is TokenUnrecognized.
func ParseStatusToken(text string) StatusToken {
	raw := strings.TrimSpace(text)
	switch {
	case raw == "":
		return Absent
	case raw == SoldKeyword:
		return StatusToken{Kind: TokenSold, Raw: raw}
	case raw == ApprovalKeyword:
		return StatusToken{Kind: TokenApproval, Raw: raw}
	case !strings.ContainsFunc(raw, unicode.IsDigit):
		return StatusToken{Kind: TokenUnrecognized, Raw: raw}
	}

	amount, ok := parseAmount(raw)
	if !ok {
		return StatusToken{Kind: TokenUnrecognized, Raw: raw}
	}
	return StatusToken{Kind: TokenPrice, Raw: raw, Amount: amount}
}

// parseAmount extracts a US-formatted amount from labels like "$12,350",
// "875 USD", "$99.50" or "1 200": commas group thousands, a single dot starts
// the fraction. Labels such as "1.200,50" are rejected.
func parseAmount(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	num := strings.Trim(b.String(), ".,")

	whole, frac, _ := strings.Cut(num, ".")
	if strings.ContainsAny(frac, ".,") {
		return decimal.Zero, false
	}
	groups := strings.Split(whole, ",")
	if groups[0] == "" {
		return decimal.Zero, false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(num, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
