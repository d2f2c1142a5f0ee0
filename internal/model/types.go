package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Observation Types
// -----------------------------------------------------------------------------

// LotKey identifies the lot currently on the block.
type LotKey struct {
	Title     string // Display title (e.g., "2019 TOYOTA CAMRY SE")
	LotNumber string // Lot number as rendered by the feed
}

// IsZero reports whether no lot has been identified.
func (k LotKey) IsZero() bool {
	return k.Title == "" && k.LotNumber == ""
}

// Complete reports whether both parts are present.
func (k LotKey) Complete() bool {
	return k.Title != "" && k.LotNumber != ""
}

// String renders the key for logs.
func (k LotKey) String() string {
	return strings.TrimSpace(k.LotNumber + " " + k.Title)
}

// LotObservation is a single poll of the page. It is discarded once folded into
// session state.
type LotObservation struct {
	Key      LotKey
	KeyFound bool
	Status   StatusToken
}

// -----------------------------------------------------------------------------
// Closing Types
// -----------------------------------------------------------------------------

// Outcome is the closing result of a lot.
type Outcome string

const (
	OutcomeSold     Outcome = "sold"     // Feed rendered "Sold!"
	OutcomeApproved Outcome = "approved" // Feed rendered "Approval!" (sale pending seller approval)
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSold || o == OutcomeApproved
}

// ClosingEvent is a closing accepted by the session guard, before it is
// formatted into a record.
type ClosingEvent struct {
	SessionID uuid.UUID
	Key       LotKey
	Price     StatusToken // Last numeric token seen for the lot; TokenAbsent if unknown
	Outcome   Outcome
}

// ClosingRecord is the persisted fact for a closed lot. Records are immutable.
type ClosingRecord struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Title        string
	LotNumber    string
	PriceAtClose decimal.Decimal // Zero when PriceText is empty
	PriceText    string          // Raw price label; empty if no price was seen
	Outcome      Outcome
	ObservedAt   time.Time
}

// PriceKnown reports whether a price was observed before the close.
func (r ClosingRecord) PriceKnown() bool {
	return r.PriceText != ""
}

// Day returns the same-day window the record falls in.
func (r ClosingRecord) Day() string {
	return r.ObservedAt.Format(time.DateOnly)
}

// PriceKey is the normalized price used for uniqueness. Unknown prices map to "".
func (r ClosingRecord) PriceKey() string {
	if !r.PriceKnown() {
		return ""
	}
	return r.PriceAtClose.String()
}

// DedupKey is the same-day uniqueness key: (day, lot_number, price, outcome).
func (r ClosingRecord) DedupKey() string {
	return r.Day() + "|" + r.LotNumber + "|" + r.PriceKey() + "|" + string(r.Outcome)
}
