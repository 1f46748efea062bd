package auth

import (
	"encoding/gob"
	"net/http"
)

const sessionKeyFlashes = "flashes"

// Flash is a one-shot notice surfaced on the next rendered page. Category
// maps onto the alert styles the templates know about.
type Flash struct {
	Category string // "success", "warning" or "danger"
	Message  string
}

func init() {
	// Flashes are stored in the session blob.
	gob.Register([]Flash{})
}

// AddFlash queues a notice for the next page render.
func (sm *SessionManager) AddFlash(r *http.Request, category, message string) {
	flashes, _ := sm.Get(r.Context(), sessionKeyFlashes).([]Flash)
	flashes = append(flashes, Flash{Category: category, Message: message})
	sm.Put(r.Context(), sessionKeyFlashes, flashes)
}

// PopFlashes returns queued notices and clears them.
func (sm *SessionManager) PopFlashes(r *http.Request) []Flash {
	flashes, _ := sm.Pop(r.Context(), sessionKeyFlashes).([]Flash)
	return flashes
}
