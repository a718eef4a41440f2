package engine

import (
	"fmt"
	"strings"

	"scoutline/internal/domain"
)

// ItemFailure is one member item that could not be closed.
type ItemFailure struct {
	Ref domain.ItemRef `json:"ref"`
	Err string         `json:"error"`
}

// PartialCascadeError reports that an initiative was closed but some of its
// members were not. Nothing is rolled back.
type PartialCascadeError struct {
	InitiativeID string
	Failed       []ItemFailure
}

func (e *PartialCascadeError) Error() string {
	refs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		refs[i] = f.Ref.String()
	}
	return fmt.Sprintf("initiative %s closed but %d member item(s) failed to close: %s",
		e.InitiativeID, len(e.Failed), strings.Join(refs, ", "))
}

// FailedRefs lists the items left unchanged.
func (e *PartialCascadeError) FailedRefs() []domain.ItemRef {
	out := make([]domain.ItemRef, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f.Ref
	}
	return out
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
}
