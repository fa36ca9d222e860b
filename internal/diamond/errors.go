package diamond

import (
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// Kind classifies a diamond failure.
type Kind int

const (
	KindUnknown Kind = iota

	// Cut failures
	KindDuplicateRegistration
	KindMustExist
	KindInvalidModule
	KindNoSelectors
	KindNonZeroRemoveTarget
	KindSameFacet
	KindImmutableFunction
	KindUnknownAction
	KindInitializationFailed
	KindUnauthorized

	// Routing failures
	KindFunctionNotFound
	KindCallDepthExceeded
	KindFacetPanicked
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindDuplicateRegistration: "DuplicateRegistration",
	KindMustExist:             "MustExist",
	KindInvalidModule:         "InvalidModule",
	KindNoSelectors:           "NoSelectors",
	KindNonZeroRemoveTarget:   "NonZeroRemoveTarget",
	KindSameFacet:             "SameFacet",
	KindImmutableFunction:     "ImmutableFunction",
	KindUnknownAction:         "UnknownAction",
	KindInitializationFailed:  "InitializationFailed",
	KindUnauthorized:          "Unauthorized",
	KindFunctionNotFound:      "FunctionNotFound",
	KindCallDepthExceeded:     "CallDepthExceeded",
	KindFacetPanicked:         "FacetPanicked",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a typed diamond failure. Only the fields relevant to Kind are set.
type Error struct {
	Kind     Kind
	Selector selector.Selector
	Facet    util.Uint160
	Caller   util.Uint160
	Action   Action
	Err      error
}

// Error implements error.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindDuplicateRegistration:
		msg = fmt.Sprintf("selector %s already registered", e.Selector)
	case KindMustExist:
		msg = fmt.Sprintf("selector %s is not registered", e.Selector)
	case KindFunctionNotFound:
		msg = fmt.Sprintf("function %s not found", e.Selector)
	case KindInvalidModule:
		msg = fmt.Sprintf("module %s has no code", FormatAddress(e.Facet))
	case KindNoSelectors:
		msg = fmt.Sprintf("no selectors for facet %s", FormatAddress(e.Facet))
	case KindNonZeroRemoveTarget:
		msg = fmt.Sprintf("remove target must be the zero address, got %s", FormatAddress(e.Facet))
	case KindSameFacet:
		msg = fmt.Sprintf("selector %s already routes to %s", e.Selector, FormatAddress(e.Facet))
	case KindImmutableFunction:
		msg = fmt.Sprintf("selector %s is immutable", e.Selector)
	case KindUnknownAction:
		msg = fmt.Sprintf("unknown cut action %d", uint8(e.Action))
	case KindInitializationFailed:
		msg = fmt.Sprintf("initializer %s failed", FormatAddress(e.Facet))
	case KindUnauthorized:
		msg = fmt.Sprintf("caller %s is not authorized", FormatAddress(e.Caller))
	case KindCallDepthExceeded:
		msg = fmt.Sprintf("call depth exceeded at %s", e.Selector)
	case KindFacetPanicked:
		msg = fmt.Sprintf("facet %s panicked in %s", FormatAddress(e.Facet), e.Selector)
	default:
		msg = "unknown failure"
	}
	if e.Err != nil {
		return "diamond: " + msg + ": " + e.Err.Error()
	}
	return "diamond: " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so the Err* sentinels match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrDuplicateRegistration = &Error{Kind: KindDuplicateRegistration}
	ErrMustExist             = &Error{Kind: KindMustExist}
	ErrFunctionNotFound      = &Error{Kind: KindFunctionNotFound}
	ErrInvalidModule         = &Error{Kind: KindInvalidModule}
	ErrNoSelectors           = &Error{Kind: KindNoSelectors}
	ErrNonZeroRemoveTarget   = &Error{Kind: KindNonZeroRemoveTarget}
	ErrSameFacet             = &Error{Kind: KindSameFacet}
	ErrImmutableFunction     = &Error{Kind: KindImmutableFunction}
	ErrUnknownAction         = &Error{Kind: KindUnknownAction}
	ErrInitializationFailed  = &Error{Kind: KindInitializationFailed}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrCallDepthExceeded     = &Error{Kind: KindCallDepthExceeded}
	ErrFacetPanicked         = &Error{Kind: KindFacetPanicked}

	// ErrAlreadyBootstrapped is returned by a second Bootstrap.
	ErrAlreadyBootstrapped = errors.New("diamond: registry already initialized")
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Revert is a facet-level failure carrying raw failure data. The router
// passes it to the caller untouched.
type Revert struct {
	Data []byte
}

// Reverted returns a Revert error with a copy of data.
func Reverted(data []byte) error {
	return &Revert{Data: append([]byte(nil), data...)}
}

// Revertf returns a Revert whose data is the formatted message.
func Revertf(format string, args ...any) error {
	return &Revert{Data: []byte(fmt.Sprintf(format, args...))}
}

// Error implements error.
func (r *Revert) Error() string {
	if len(r.Data) == 0 {
		return "revert"
	}
	if utf8.Valid(r.Data) {
		return "revert: " + string(r.Data)
	}
	return "revert: 0x" + hex.EncodeToString(r.Data)
}
