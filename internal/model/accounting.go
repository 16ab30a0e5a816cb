package model

import "time"

type ExpenseCategory struct {
	ID          string
	Name        string
	Description string
}

type Expense struct {
	ID         string
	UserID     string
	CategoryID string
	Merchant   string
	// AmountCents avoids float drift on money values.
	AmountCents int64
	Currency    string
	Notes       string
	IncurredAt  time.Time
	CreatedAt   time.Time
}

// ExpenseReportRow aggregates a user's spending per category over a period.
type ExpenseReportRow struct {
	CategoryID   string
	CategoryName string
	Count        int
	TotalCents   int64
}
