package model

import "strings"

// Status is the lifecycle state of a reported item.
type Status string

// Item statuses. Items only move forward: lost/found -> returned.
const (
	StatusLost     Status = "lost"
	StatusFound    Status = "found"
	StatusReturned Status = "returned"
)

// Anonymous is the owner id and email recorded when no session is active.
const Anonymous = "anonymous"

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusLost, StatusFound, StatusReturned:
		return true
	}
	return false
}

// Item is a single lost, found or returned entry on the board.
// Timestamps are epoch milliseconds.
type Item struct {
	ID           string `json:"itemId"`
	ItemName     string `json:"itemName"`
	Description  string `json:"description"`
	Status       Status `json:"status"`
	Location     string `json:"location"`
	ContactInfo  string `json:"contactInfo"`
	Timestamp    int64  `json:"timestamp"`
	OwnerID      string `json:"ownerId"`
	OwnerEmail   string `json:"ownerEmail"`
	ReturnedDate *int64 `json:"returnedDate,omitempty"`
}

// Returned reports whether the item has been marked returned.
func (i *Item) Returned() bool {
	return i.Status == StatusReturned
}

// ItemPatch holds the fields an update may change. Nil fields are left
// untouched. There is no owner field: ownership never changes.
type ItemPatch struct {
	ItemName     *string `json:"itemName,omitempty"`
	Description  *string `json:"description,omitempty"`
	Status       *Status `json:"status,omitempty"`
	Location     *string `json:"location,omitempty"`
	ContactInfo  *string `json:"contactInfo,omitempty"`
	ReturnedDate *int64  `json:"returnedDate,omitempty"`
}

// Apply merges the patch into item.
func (p ItemPatch) Apply(item *Item) {
	if p.ItemName != nil {
		item.ItemName = *p.ItemName
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.ContactInfo != nil {
		item.ContactInfo = *p.ContactInfo
	}
	if p.ReturnedDate != nil {
		ts := *p.ReturnedDate
		item.ReturnedDate = &ts
	}
}

// Filter restricts the displayed set by status. FilterAll shows everything.
type Filter string

// FilterAll is the default filter.
const FilterAll Filter = "all"

// ParseFilter parses a filter value. Empty input means FilterAll.
func ParseFilter(s string) (Filter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(FilterAll) {
		return FilterAll, true
	}
	if Status(s).Valid() {
		return Filter(s), true
	}
	return FilterAll, false
}

// Match reports whether item passes the filter.
func (f Filter) Match(item Item) bool {
	return f == FilterAll || f == "" || Status(f) == item.Status
}

// Filters lists the filter values in display order.
var Filters = []Filter{FilterAll, Filter(StatusLost), Filter(StatusFound), Filter(StatusReturned)}
