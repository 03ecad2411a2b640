package domain

import (
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionAdd      Action = "ADD"
	ActionMove     Action = "MOVE"
	ActionPurchase Action = "PURCHASE"
	ActionDelete   Action = "DELETE"
)

// ParseAction accepts the upper-case names as well as the title-case labels
// older spreadsheets were written with ("Move", "Purchase").
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionAdd, ActionMove, ActionPurchase, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("unknown ledger action %q", s)
}

// IsMovement reports whether the action changes stock and counts toward movement volume.
func (a Action) IsMovement() bool {
	return a == ActionAdd || a == ActionMove || a == ActionPurchase
}

// LedgerEntry is one immutable record of a committed mutation.
// For MOVE the counts are those of the source location.
type LedgerEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	Item          string    `json:"item"`
	Quantity      int       `json:"quantity"`
	FromLocation  string    `json:"from_location,omitempty"`
	ToLocation    string    `json:"to_location,omitempty"`
	PreviousCount int       `json:"previous_count"`
	FinalCount    int       `json:"final_count"`
	Detail        string    `json:"detail,omitempty"`
}
