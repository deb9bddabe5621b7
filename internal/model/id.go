package model

import "github.com/rs/xid"

// IDLength is the exact length of a task identifier string. The error
// classifier relies on this width when extracting ids from engine messages.
const IDLength = 20

// NewID generates a new xid string for use as a task identifier.
func NewID() string {
	return xid.New().String()
}
