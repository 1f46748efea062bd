// Package policy holds the authorization rules for catalog actions.
//
// Decisions are pure functions of the acting user's role and the action; they
// never touch storage. Books carry no owner field, so editing is role-based:
// admins and moderators only.
package policy

import "github.com/ama13/bookshelf/internal/entities"

// Action is the closed set of things a user can do to a book record.
type Action string

const (
	ActionCreate Action = "create"
	ActionShow   Action = "show"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Can reports whether user may perform action on book. The book argument is
// only consulted for record-scoped actions and may be nil for ActionCreate
// and ActionShow. A nil user is never allowed anything.
func Can(user *entities.User, action Action, book *entities.Book) bool {
	if user == nil {
		return false
	}

	switch action {
	case ActionCreate:
		return user.IsAdmin()
	case ActionShow:
		return true
	case ActionEdit:
		if book == nil {
			return false
		}
		return user.IsAdmin() || user.IsModerator()
	case ActionDelete:
		return user.IsAdmin()
	default:
		return false
	}
}

// CanViewCollection reports whether user owns the collection. Collections are
// strictly private to their owner.
func CanViewCollection(user *entities.User, collection *entities.Collection) bool {
	if user == nil || collection == nil {
		return false
	}
	return user.ID == collection.UserID
}
