package stats

import (
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Sentinel errors for the stats service layer.
var (
	ErrNotFound = fmt.Errorf("history record %w", domain.ErrNotFound)
)
