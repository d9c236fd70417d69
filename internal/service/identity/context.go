package identity

import "context"

// Selection is the active sending identity for a request.
type Selection struct {
	DomainID string `json:"activeDomainId"`
}

type selectionKey struct{}

// WithSelection returns a copy of ctx carrying sel.
func WithSelection(ctx context.Context, sel Selection) context.Context {
	return context.WithValue(ctx, selectionKey{}, sel)
}

// SelectionFrom returns the selection carried by ctx, if any.
func SelectionFrom(ctx context.Context) (Selection, bool) {
	sel, ok := ctx.Value(selectionKey{}).(Selection)
	return sel, ok
}

// DomainOrSelected returns id, or the selected domain when id is empty.
func DomainOrSelected(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	sel, _ := SelectionFrom(ctx)
	return sel.DomainID
}
