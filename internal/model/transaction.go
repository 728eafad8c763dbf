// Package model defines the shared data types passed between case review stages.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single transaction from the account's history.
// Transactions are created once at intake and never mutated; findings
// reference them by ID.
type Transaction struct {
	Timestamp           time.Time
	ID                  string
	Amount              float64
	Currency            string
	Type                string // e.g. deposit, withdrawal, transfer_in, transfer_out, card_payment
	Description         string
	CounterpartyName    string
	CounterpartyAcct    string
	CounterpartyBankID  string
	CounterpartyCountry string // ISO 3166-1 alpha-2, may be empty
	Latitude            *float64
	Longitude           *float64
	Cash                bool
	BalanceAfter        float64
}

// HasCoordinates reports whether the transaction carries geocoordinates.
func (t *Transaction) HasCoordinates() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// Hash produces a stable identifier for duplicate detection when a source
// does not supply transaction IDs.
func (t *Transaction) Hash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Timestamp.Format("2006-01-02"),
		t.Amount,
		t.Description,
		t.CounterpartyName)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// IsOutbound reports whether funds left the account.
func (t *Transaction) IsOutbound() bool {
	switch t.Type {
	case "withdrawal", "transfer_out", "card_payment":
		return true
	}
	return false
}

// IsInbound reports whether funds entered the account.
func (t *Transaction) IsInbound() bool {
	switch t.Type {
	case "deposit", "transfer_in":
		return true
	}
	return false
}
