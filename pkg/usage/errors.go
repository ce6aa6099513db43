package usage

import (
	"fmt"

	"github.com/leapstack-labs/wrangle/pkg/token"
)

// Reason classifies a binding failure.
type Reason int

// Binding failure reasons.
const (
	Missing  Reason = iota // required parameter had no token left
	Mismatch               // required parameter met a token of another kind
	Extra                  // tokens remained after all parameters were processed
)

func (r Reason) String() string {
	switch r {
	case Missing:
		return "missing"
	case Mismatch:
		return "mismatch"
	case Extra:
		return "extra"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// BindingError reports a token group that does not satisfy a definition.
type BindingError struct {
	Directive string
	Param     string       // parameter that failed; empty for Extra
	Expected  token.Kind   // declared kind of Param
	Reason    Reason
	Token     *token.Token // offending token for Mismatch and Extra
	Usage     string       // rendered usage line
}

// Position returns the offending token position, if any.
func (e *BindingError) Position() token.Position {
	if e.Token != nil {
		return e.Token.Pos
	}
	return token.Position{}
}

func (e *BindingError) Error() string {
	var msg string
	switch e.Reason {
	case Missing:
		msg = fmt.Sprintf("missing required argument %q (%s)", e.Param, e.Expected)
	case Mismatch:
		msg = fmt.Sprintf("argument %q expects %s, found %s", e.Param, e.Expected, e.Token.Describe())
	case Extra:
		msg = fmt.Sprintf("unexpected argument %s", e.Token.Describe())
	default:
		msg = e.Reason.String()
	}
	if e.Usage != "" {
		return fmt.Sprintf("%s: %s; usage: %s", e.Directive, msg, e.Usage)
	}
	return fmt.Sprintf("%s: %s", e.Directive, msg)
}
