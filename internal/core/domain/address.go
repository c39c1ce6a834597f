package domain

import "strings"

// MonitoredAddress is an account the watcher scans for mint transactions.
type MonitoredAddress struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	NextBlock uint64 `json:"nextBlock"`
}

// NormalizeAddress returns the canonical (lower-case) form used as map key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
