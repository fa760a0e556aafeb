// Package reconciliation defines statements, persisted matches and the
// errors shared by the reconciliation workflow.
package reconciliation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus is the lifecycle state of an uploaded bank statement.
type StatementStatus string

const (
	StatusUploaded   StatementStatus = "uploaded"
	StatusInProgress StatementStatus = "in_progress"
	StatusReconciled StatementStatus = "reconciled"
)

// Statement is an uploaded bank statement for one account and period.
type Statement struct {
	ID             string
	AccountID      string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Status         StatementStatus
}

// MatchType records how a match was created.
type MatchType string

const (
	MatchManual    MatchType = "MANUAL"
	MatchSuggested MatchType = "SUGGESTED"
)

// Match is a persisted reconciliation outcome linking one bank record to one
// or more candidate transactions.
type Match struct {
	ID           string
	StatementID  string
	AccountID    string
	BankRecordID string
	CandidateIDs []string
	MatchType    MatchType
	Score        float64
	MatchedAt    time.Time
	MatchedBy    string
	Notes        string
}

// Scope selects the bank records a matching run operates on.
type Scope struct {
	StatementID string
	AccountID   string
	DateFrom    time.Time
	DateTo      time.Time
}

// Sentinel errors
var (
	ErrNotFound             = errors.New("not found")
	ErrNoMatch              = errors.New("bank record has no recorded match")
	ErrAlreadyReconciled    = errors.New("bank record already reconciled")
	ErrCandidateUnavailable = errors.New("candidate already reconciled or missing")
	ErrStatementBusy        = errors.New("statement is already being reconciled")
	ErrInvalidMatch         = errors.New("invalid match request")
)

// NotFoundError names the missing resource. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound returns a NotFoundError for resource id.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}
