// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
)

// ErrContractViolation matches every *ContractViolation with errors.Is.
var ErrContractViolation = errors.New("analysis: contract violation")

// ContractViolation reports a block the analyzer refuses to look at: the
// wrong length or a non-finite sample. The block is discarded and no
// analysis state changes.
type ContractViolation struct {
	Reason string
	Index  int // offending sample, -1 when the whole block is at fault
}

func (e *ContractViolation) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("analysis: contract violation: %s at sample %d", e.Reason, e.Index)
	}
	return fmt.Sprintf("analysis: contract violation: %s", e.Reason)
}

// Is makes errors.Is(err, ErrContractViolation) hold.
func (e *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}
