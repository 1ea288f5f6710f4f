package netcore

import "github.com/l2fabric/l2fabric/pkg/brokererr"

// precondition accumulates typed failures before a mutation is allowed to
// proceed (spec §4.3 Switch write-path: add_terminal, remove_terminal,
// initiate, release): every check call runs regardless of earlier ones, and
// result() reports all of them together via brokererr.Aggregate rather than
// stopping at the first broken precondition.
type precondition struct {
	errs []error
}

func newPrecondition() *precondition { return &precondition{} }

// check appends err if ok is false. err is built by the caller from the
// existing *Err constructors in errors.go, so aggregated failures carry the
// same brokererr.Kind/entity/detail a lone failure would.
func (p *precondition) check(ok bool, err error) *precondition {
	if !ok {
		p.errs = append(p.errs, err)
	}
	return p
}

// ok reports whether every check so far has held.
func (p *precondition) ok() bool { return len(p.errs) == 0 }

// result returns nil if every precondition held, the lone error if exactly
// one failed, or a *brokererr.Multi aggregating all of them.
func (p *precondition) result() error {
	return brokererr.Aggregate(p.errs)
}
