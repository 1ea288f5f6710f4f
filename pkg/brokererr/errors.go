// Package brokererr defines the typed failures propagated by the broker
// core (spec §7): a fixed set of error kinds, each carrying the offending
// entity, wrapping to a sentinel so callers can use errors.Is/errors.As.
package brokererr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the error categories spec §7 enumerates.
type Kind int

const (
	// Management errors.
	KindTerminalExists Kind = iota
	KindUnknownTerminal
	KindOwnTerminal
	KindUnknownTrunk
	KindUnknownSubnetwork
	KindTerminalInUse

	// Planning errors.
	KindUnroutable
	KindOutOfLabels
	KindOutOfBandwidth

	// Lifecycle errors.
	KindInvalidState
	KindFabricError
	KindConfigError
)

func (k Kind) String() string {
	switch k {
	case KindTerminalExists:
		return "TERMINAL_EXISTS"
	case KindUnknownTerminal:
		return "UNKNOWN_TERMINAL"
	case KindOwnTerminal:
		return "OWN_TERMINAL"
	case KindUnknownTrunk:
		return "UNKNOWN_TRUNK"
	case KindUnknownSubnetwork:
		return "UNKNOWN_SUBNETWORK"
	case KindTerminalInUse:
		return "TERMINAL_IN_USE"
	case KindUnroutable:
		return "UNROUTABLE"
	case KindOutOfLabels:
		return "OUT_OF_LABELS"
	case KindOutOfBandwidth:
		return "OUT_OF_BANDWIDTH"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindFabricError:
		return "FABRIC_ERROR"
	case KindConfigError:
		return "CONFIG_ERROR"
	default:
		return "UNKNOWN"
	}
}

// sentinels lets callers write errors.Is(err, brokererr.ErrUnroutable)
// without reaching for the Error struct.
var sentinels = map[Kind]error{
	KindTerminalExists:    errors.New("terminal already exists"),
	KindUnknownTerminal:   errors.New("unknown terminal"),
	KindOwnTerminal:       errors.New("expected an inferior terminal, got one of the aggregator's own"),
	KindUnknownTrunk:      errors.New("unknown trunk"),
	KindUnknownSubnetwork: errors.New("unknown inferior network"),
	KindTerminalInUse:     errors.New("terminal or trunk is in use by a live service"),
	KindUnroutable:        errors.New("no spanning tree satisfies the requested bandwidth"),
	KindOutOfLabels:       errors.New("trunk has no free labels"),
	KindOutOfBandwidth:    errors.New("trunk has insufficient remaining bandwidth"),
	KindInvalidState:      errors.New("operation not valid in the current service state"),
	KindFabricError:       errors.New("fabric driver reported an error"),
	KindConfigError:       errors.New("invalid configuration"),
}

// Sentinel returns the package-level sentinel error for a Kind, suitable for
// errors.Is comparisons.
func Sentinel(k Kind) error { return sentinels[k] }

// Exported sentinels for the common errors.Is call sites.
var (
	ErrTerminalExists    = sentinels[KindTerminalExists]
	ErrUnknownTerminal   = sentinels[KindUnknownTerminal]
	ErrOwnTerminal       = sentinels[KindOwnTerminal]
	ErrUnknownTrunk      = sentinels[KindUnknownTrunk]
	ErrUnknownSubnetwork = sentinels[KindUnknownSubnetwork]
	ErrTerminalInUse     = sentinels[KindTerminalInUse]
	ErrUnroutable        = sentinels[KindUnroutable]
	ErrOutOfLabels       = sentinels[KindOutOfLabels]
	ErrOutOfBandwidth    = sentinels[KindOutOfBandwidth]
	ErrInvalidState      = sentinels[KindInvalidState]
	ErrFabricError       = sentinels[KindFabricError]
	ErrConfigError       = sentinels[KindConfigError]
)

// Error is the typed failure returned by every management/service/planning
// operation that can fail. Entity names the offending terminal, trunk,
// network, or service id; Detail carries a human-readable elaboration;
// Cause wraps an underlying error (e.g. a fabric driver failure) when one
// exists.
type Error struct {
	Kind   Kind
	Entity string
	Detail string
	Cause  error
}

// New constructs an Error of the given kind for the named entity.
func New(kind Kind, entity string, detail string) *Error {
	return &Error{Kind: kind, Entity: entity, Detail: detail}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause
// (used for FABRIC_ERROR, where the cause is the driver's reported error).
func Wrap(kind Kind, entity string, cause error) *Error {
	return &Error{Kind: kind, Entity: entity, Cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Entity)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap lets errors.Is(err, brokererr.ErrUnroutable) etc. work directly
// against an *Error, and chains through to Cause for driver errors.
func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Is reports whether target is this Error's Kind sentinel, so plain
// errors.Is(err, brokererr.ErrUnroutable) works even though Unwrap returns
// multiple errors.
func (e *Error) Is(target error) bool {
	return target == sentinels[e.Kind]
}

// Multi aggregates every precondition failure found while checking a
// management or service write operation, rather than reporting only the
// first one (spec §4.3 "returning an aggregated typed failure").
type Multi struct {
	Errs []error
}

// Aggregate collapses errs into a single error: nil if empty, the lone
// error if there is exactly one, otherwise a *Multi. Callers that check
// several independent preconditions at once and want to report every
// failure together build errs first and call Aggregate once.
func Aggregate(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &Multi{Errs: errs}
	}
}

func (m *Multi) Error() string {
	msgs := make([]string, len(m.Errs))
	for i, e := range m.Errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d preconditions failed:\n  - %s", len(m.Errs), strings.Join(msgs, "\n  - "))
}

// Unwrap lets errors.Is/errors.As reach through a Multi to any one of the
// errors it aggregates.
func (m *Multi) Unwrap() []error { return m.Errs }
