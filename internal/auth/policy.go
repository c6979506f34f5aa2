package auth

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Authorization is a pure capability check over (requester, ticket). Staff
// have unrestricted access; everyone else is scoped by ownership and
// assignment.

// CanViewTicket allows staff, the creator, and the assignee.
func CanViewTicket(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	if user.IsStaff || ticket.CreatedByID == user.ID {
		return true
	}
	return ticket.AssignedToID != nil && *ticket.AssignedToID == user.ID
}

// CanModifyTicket allows staff and the creator.
func CanModifyTicket(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	return user.IsStaff || ticket.CreatedByID == user.ID
}

// CanRequestAIReply allows staff for any ticket and non-staff only for
// tickets assigned to them. Callers deny with not-found rather than
// forbidden so existence is not leaked.
func CanRequestAIReply(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	if user.IsStaff {
		return true
	}
	return ticket.AssignedToID != nil && *ticket.AssignedToID == user.ID
}

// ListScope returns the viewer ID to filter listings by, or nil when the
// user sees everything.
func ListScope(user *domain.User) *int64 {
	if user == nil {
		return nil
	}
	if user.IsStaff {
		return nil
	}
	id := user.ID
	return &id
}
