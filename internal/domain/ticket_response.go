package domain

import "time"

// TicketResponse is an append-only reply in a ticket thread, authored either
// by a human or generated by the advisory client on a human's behalf.
type TicketResponse struct {
	ID            int64
	TicketID      int64
	ResponseText  string
	IsAIGenerated bool
	CreatedByID   int64
	CreatedAt     time.Time
}
