package domain

import "time"

// MissedTransaction is a transaction whose mint classification could not be
// determined. It is journaled so it can be classified again later.
type MissedTransaction struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	Name        string      `json:"name"`
	Transaction Transaction `json:"transaction"`
	Reason      string      `json:"reason"`
	Attempts    int         `json:"attempts"`
	LastAttempt time.Time   `json:"last_attempt"`
	CreatedAt   time.Time   `json:"created_at"`
}
