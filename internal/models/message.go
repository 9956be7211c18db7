package models

import "time"

// Route identifies a delivery channel a message can be forwarded to.
type Route string

// Supported routes.
const (
	RouteEmail   Route = "email"
	RouteText    Route = "text"
	RouteDiscord Route = "discord"
)

// Canonical record field names, as reported in field faults.
const (
	CanonicalFrom      = "from"
	CanonicalBody      = "body"
	CanonicalCreatedAt = "created_at"
)

// CanonicalMessage is the authoritative message record fetched from the
// provider. A nil field was present on the record with a null value. Fields
// the record did not carry at all are listed in Absent. A present but
// unparseable creation date is stored as the zero time.
type CanonicalMessage struct {
	SID         string
	AccountSID  string
	From        *string
	To          *string
	Body        *string
	Status      *string
	NumMedia    *string
	NumSegments *string
	Direction   *string
	DateCreated *time.Time

	Absent map[string]bool
}

// Has reports whether the record carried field, null or not.
func (m CanonicalMessage) Has(field string) bool {
	return !m.Absent[field]
}

// ExtractedMessage is the minimal projection the router and notifiers work on.
type ExtractedMessage struct {
	CreatedAt time.Time `json:"created_at"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Routes    []Route   `json:"routes,omitempty"`
}

// HasRoute reports whether route is part of the message's route set.
func (m ExtractedMessage) HasRoute(route Route) bool {
	for _, r := range m.Routes {
		if r == route {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with m.
func (m ExtractedMessage) Clone() ExtractedMessage {
	out := m
	if m.Routes != nil {
		out.Routes = append([]Route(nil), m.Routes...)
	}
	return out
}
