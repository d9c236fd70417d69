package sending

import (
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Sentinel errors for the sending service layer.
var (
	ErrNoTemplates = domain.Invalid("domainId", "no templates found for this domain")
	ErrNoContacts  = domain.Invalid("domainId", "no contacts found for this domain")
)

// TestSendError reports a failed test send. It carries the channel's
// error text so callers can show it.
type TestSendError struct {
	AccountID string
	Reason    string
}

func (e *TestSendError) Error() string {
	return fmt.Sprintf("test send from account %s failed: %s", e.AccountID, e.Reason)
}
