package strategy

import (
	"fmt"
	"strings"
)

// InvalidParameterError reports operator input that fails validation before
// any network activity happens.
type InvalidParameterError struct {
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return "invalid parameter: " + e.Reason
}

// NoMatchError reports a selection step that had nothing to select from.
type NoMatchError struct {
	Reason string
}

func (e *NoMatchError) Error() string {
	return "no match: " + e.Reason
}

// InvalidCombinationError reports a structurally impossible strategy, such
// as a spread whose two legs resolve to the same contract.
type InvalidCombinationError struct {
	Reason string
}

func (e *InvalidCombinationError) Error() string {
	return "invalid combination: " + e.Reason
}

// OrderRejectedError carries the brokerage's rejection messages verbatim.
type OrderRejectedError struct {
	Messages []string
}

func (e *OrderRejectedError) Error() string {
	if len(e.Messages) == 0 {
		return "order rejected"
	}
	return fmt.Sprintf("order rejected: %s", strings.Join(e.Messages, "; "))
}
