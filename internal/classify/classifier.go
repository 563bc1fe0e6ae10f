// Package classify decides whether the window under the cursor should be
// raised. Application knowledge lives in a declarative rule table
// (rules.go); the classifier walks it in a fixed order:
//
//  1. a held mouse button suspends every decision
//  2. cursor window (or its top-level root) already foreground: nothing to do
//  3. a learned pair maps the cursor window to the foreground window: nothing to do
//  4. pause rules on the foreground class suspend raising
//  5. pair rules on (cursor class, foreground class) teach a new pair when
//     the cursor window is top-level and so not linked by ancestry
//  6. a memoized verdict for the cursor window is reused
//  7. with an external window list configured, the list alone decides
//  8. otherwise allow rules, block rules and window style decide
//
// Only the cursor-side window is classified. The foreground window is never
// required to be eligible itself, so focus can always leave a desktop or
// taskbar surface.
package classify

import (
	"github.com/bryanchriswhite/focusfollows/internal/external"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// Outcome is the result of one evaluation.
type Outcome int

const (
	// NoDecision means a drag is in progress
	NoDecision Outcome = iota
	// SameWindow means the cursor is already over the foreground window
	SameWindow
	// KnownPair means a learned pair says both handles are one window
	KnownPair
	// Paused means the foreground window is on the pause list
	Paused
	// PairLearned means a pair rule matched and a new pair should be recorded
	PairLearned
	// Unknown means a fact could not be obtained; nothing may be cached
	Unknown
	// Ineligible means the cursor window must not be raised
	Ineligible
	// Eligible means the cursor window should be raised
	Eligible
)

func (o Outcome) String() string {
	switch o {
	case NoDecision:
		return "no-decision"
	case SameWindow:
		return "same-window"
	case KnownPair:
		return "known-pair"
	case Paused:
		return "paused"
	case PairLearned:
		return "pair-learned"
	case Unknown:
		return "unknown"
	case Ineligible:
		return "ineligible"
	case Eligible:
		return "eligible"
	default:
		return "invalid"
	}
}

// MarshalText renders outcomes by name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Facts supplies window attributes on demand. The engine implements it on
// top of its caches so that attributes are only queried when a rule needs
// them.
type Facts interface {
	Class(h window.Handle) (string, error)
	Style(h window.Handle) (window.Style, error)
	Pair(h window.Handle) (window.Handle, bool)
	Memo(h window.Handle) (eligible bool, ok bool)
}

// Lister loads an external list of managed windows.
type Lister interface {
	Load() (external.List, error)
}

// Request identifies the windows involved in one pointer movement.
type Request struct {
	Dragging   bool
	Cursor     window.Handle
	Root       window.Handle
	Foreground window.Handle
}

// Decision is the classifier's verdict plus the facts worth caching.
type Decision struct {
	Outcome         Outcome
	Reason          string
	Rule            string
	CursorClass     string
	ForegroundClass string
	// LearnPair asks the caller to record Cursor -> Foreground as a pair
	LearnPair bool
	// Memo, when set, is the verdict to memoize for the cursor window
	Memo *bool
	// Err is the query or read failure behind an Unknown outcome
	Err error
}

// ShouldRaise reports whether the cursor's top-level window should be raised.
func (d Decision) ShouldRaise() bool {
	return d.Outcome == Eligible
}

// Classifier evaluates rule sets against requests.
type Classifier struct {
	rules    *RuleSet
	external Lister
}

// New creates a classifier. A nil lister selects heuristic mode.
func New(rules *RuleSet, lister Lister) *Classifier {
	return &Classifier{rules: rules, external: lister}
}

// ExternalMode reports whether an external list replaces the heuristics.
func (c *Classifier) ExternalMode() bool {
	return c.external != nil
}

// Rules returns the rule set in use.
func (c *Classifier) Rules() *RuleSet {
	return c.rules
}

// Evaluate runs the decision order documented on the package.
func (c *Classifier) Evaluate(req Request, facts Facts) Decision {
	if req.Dragging {
		return Decision{Outcome: NoDecision, Reason: "mouse button held"}
	}

	if req.Cursor == req.Foreground || req.Root == req.Foreground {
		return Decision{Outcome: SameWindow, Reason: "cursor is over the foreground window"}
	}

	if paired, ok := facts.Pair(req.Cursor); ok && paired == req.Foreground {
		return Decision{Outcome: KnownPair, Reason: "handles are known to refer to the same application"}
	}

	var d Decision
	var err error

	// An unreadable foreground is a query failure like any other: the move
	// is not classified, so neither pause nor pair rules run half-informed
	if d.ForegroundClass, err = facts.Class(req.Foreground); err != nil {
		return unknown(d, "foreground class unavailable", err)
	}

	if r, ok := c.rules.Paused(d.ForegroundClass); ok {
		d.Outcome, d.Rule, d.Reason = Paused, r.Name, "foreground window pauses raising"
		return d
	}

	if d.CursorClass, err = facts.Class(req.Cursor); err != nil {
		// Only the client window carries a class on X11; its sub-windows
		// are classified as the client
		if req.Root == req.Cursor {
			return unknown(d, "cursor class unavailable", err)
		}
		if d.CursorClass, err = facts.Class(req.Root); err != nil {
			return unknown(d, "cursor class unavailable", err)
		}
	}

	// Ancestry already links a child to its top-level window, so pair
	// rules only apply to surfaces that are top-level themselves
	if req.Root == req.Cursor {
		if r, ok := c.rules.Paired(d.CursorClass, d.ForegroundClass); ok {
			d.Outcome, d.Rule, d.Reason = PairLearned, r.Name, "cursor window belongs to the foreground application"
			d.LearnPair = true
			return d
		}
	}

	if eligible, ok := facts.Memo(req.Cursor); ok {
		if eligible {
			d.Outcome, d.Reason = Eligible, "eligible in cache"
			return d
		}
		if !c.ExternalMode() {
			d.Outcome, d.Reason = Ineligible, "ineligible in cache"
			return d
		}
	}

	if c.ExternalMode() {
		return c.evaluateExternal(req, d)
	}
	return c.evaluateHeuristic(req, facts, d)
}

// evaluateExternal trusts only the external list. A negative answer is not
// memoized because the window manager may start managing the window later.
func (c *Classifier) evaluateExternal(req Request, d Decision) Decision {
	list, err := c.external.Load()
	if err != nil {
		return unknown(d, "external window list unreadable", err)
	}

	if list.Contains(req.Cursor) || list.Contains(req.Root) {
		d.Outcome, d.Reason = Eligible, "listed by external window manager"
		d.Memo = verdict(true)
		return d
	}

	d.Outcome, d.Reason = Ineligible, "not listed by external window manager"
	return d
}

func (c *Classifier) evaluateHeuristic(req Request, facts Facts, d Decision) Decision {
	classes := []string{d.CursorClass}
	if req.Root != req.Cursor {
		rootClass, err := facts.Class(req.Root)
		if err != nil {
			return unknown(d, "root class unavailable", err)
		}
		if rootClass != d.CursorClass {
			classes = append(classes, rootClass)
		}
	}

	if r, ok := c.rules.Allowed(classes...); ok {
		d.Outcome, d.Rule, d.Reason = Eligible, r.Name, "class is allowed"
		d.Memo = verdict(true)
		return d
	}

	if r, ok := c.rules.Blocked(classes...); ok {
		d.Outcome, d.Rule, d.Reason = Ineligible, r.Name, "class is blocked"
		d.Memo = verdict(false)
		return d
	}

	style, err := facts.Style(req.Root)
	if err != nil {
		return unknown(d, "window style unavailable", err)
	}

	if style.Has(window.StyleToolWindow | window.StyleNoActivate) {
		d.Outcome, d.Reason = Ineligible, "style is "+style.String()
		d.Memo = verdict(false)
		return d
	}

	d.Outcome, d.Reason = Eligible, "ordinary application window"
	d.Memo = verdict(true)
	return d
}

func unknown(d Decision, reason string, err error) Decision {
	d.Outcome, d.Reason, d.Err = Unknown, reason, err
	d.Memo = nil
	return d
}

func verdict(v bool) *bool {
	return &v
}
