package audit

import (
	"fmt"

	"siteaudit/pkg/errors"
)

// Error is the single failure shape of the wrapped pipeline stages.
type Error struct {
	Type    string
	SiteKey string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s audit failed for site %s. Reason: %s", e.Type, e.SiteKey, errors.Message(e.Cause))
}

func (e *Error) Unwrap() error {
	return e.Cause
}
