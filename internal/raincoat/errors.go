// SPDX-License-Identifier: MPL-2.0

package raincoat

import (
	"fmt"
	"strings"

	"github.com/raincoat-go/raincoat/internal/match"
)

// UnknownKindError is returned when a run is restricted to a kind no
// registered descriptor provides.
type UnknownKindError struct {
	Name  string
	Known []string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown match kind %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Unwrap returns match.ErrUnknownKind for errors.Is() compatibility.
func (e *UnknownKindError) Unwrap() error { return match.ErrUnknownKind }
