package domain

import "time"

// Allocation is the triple that is always written together.
type Allocation struct {
	DueDate      *time.Time `json:"due_date,omitempty"`
	Bucket       Bucket     `json:"bucket"`
	InitiativeID *string    `json:"initiative_id,omitempty"`
}

// Allocation returns the item's current allocation triple.
func (it TrackableItem) Allocation() Allocation {
	return Allocation{DueDate: it.DueDate, Bucket: it.Bucket, InitiativeID: it.InitiativeID}
}

// Apply copies an allocation onto the item.
func (it *TrackableItem) Apply(a Allocation) {
	it.DueDate = a.DueDate
	it.Bucket = a.Bucket
	it.InitiativeID = a.InitiativeID
}

// ItemPatch is a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
	Severity    *string
	Allocation  *Allocation
	UpdatedAt   string
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil &&
		p.Severity == nil && p.Allocation == nil
}

type ItemFilter struct {
	AccountID    string
	Kind         SourceKind
	InitiativeID string
	Statuses     []Status
}

// InitiativePatch is a partial initiative update.
type InitiativePatch struct {
	Name         *string
	Description  *string
	Color        *string
	DueDate      *time.Time
	ClearDueDate bool
	Status       *InitiativeStatus
	UpdatedAt    string
}

type InitiativeFilter struct {
	AccountID string
	Statuses  []InitiativeStatus
}

type EventFilter struct {
	AccountID  string
	Type       string
	EntityKind string
	EntityID   string
	Limit      int
	// BeforeID pages backwards from an event id.
	BeforeID int64
}
