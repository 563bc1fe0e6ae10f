package classify

import (
	"fmt"
	"strings"
)

// Kind says what a rule does when it matches.
type Kind string

const (
	// KindPause rules match the foreground class and suspend raising while
	// that window owns focus (task switchers and similar transient UI).
	KindPause Kind = "pause"
	// KindPair rules match a cursor class together with a foreground class
	// that are known to be the same application.
	KindPair Kind = "pair"
	// KindAllow rules make a window eligible regardless of its style.
	KindAllow Kind = "allow"
	// KindBlock rules make a window ineligible.
	KindBlock Kind = "block"
)

// Match selects how a rule pattern is compared with a class name.
type Match string

const (
	MatchExact    Match = "exact"
	MatchContains Match = "contains"
)

func (m Match) matches(pattern, class string) bool {
	if class == "" {
		return false
	}
	if m == MatchContains {
		return strings.Contains(class, pattern)
	}
	return class == pattern
}

// Rule is one entry of the special-case table.
type Rule struct {
	Name            string `json:"name" yaml:"name"`
	Kind            Kind   `json:"kind" yaml:"kind"`
	Class           string `json:"class" yaml:"class"`
	Match           Match  `json:"match,omitempty" yaml:"match,omitempty"`
	Foreground      string `json:"foreground,omitempty" yaml:"foreground,omitempty"`
	ForegroundMatch Match  `json:"foreground_match,omitempty" yaml:"foreground_match,omitempty"`
}

// Validate checks that the rule can be evaluated
func (r Rule) Validate() error {
	switch r.Kind {
	case KindPause, KindAllow, KindBlock:
	case KindPair:
		if r.Foreground == "" {
			return fmt.Errorf("rule %q: pair rules need a foreground class", r.Name)
		}
	default:
		return fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind)
	}
	if r.Class == "" {
		return fmt.Errorf("rule %q: class is required", r.Name)
	}
	for _, m := range []Match{r.Match, r.ForegroundMatch} {
		if m != "" && m != MatchExact && m != MatchContains {
			return fmt.Errorf("rule %q: unknown match %q", r.Name, m)
		}
	}
	return nil
}

func (r Rule) matchesClass(class string) bool {
	return r.Match.matches(r.Class, class)
}

func (r Rule) matchesForeground(class string) bool {
	return r.ForegroundMatch.matches(r.Foreground, class)
}

// DefaultRules is the built-in table of application special cases.
var DefaultRules = []Rule{
	// Task switchers own transient system-level interaction
	{Name: "task-switcher", Kind: KindPause, Class: "XamlExplorerHostIslandWindow"},
	{Name: "task-switcher-staging", Kind: KindPause, Class: "ForegroundStaging"},
	{Name: "task-view", Kind: KindPause, Class: "MultitaskingViewFrame"},

	// Embedded surfaces that show up under the cursor while their own
	// top-level window is already foreground
	{Name: "chromium-renderer", Kind: KindPair, Class: "Chrome_RenderWidgetHostHWND", Foreground: "Chrome_WidgetWin", ForegroundMatch: MatchContains},
	{Name: "chromium-d3d", Kind: KindPair, Class: "Intermediate D3D Window", Foreground: "Chrome_WidgetWin", ForegroundMatch: MatchContains},
	{Name: "explorer-content", Kind: KindPair, Class: "DirectUIHWND", Foreground: "CabinetWClass"},
	{Name: "explorer-view", Kind: KindPair, Class: "SHELLDLL_DefView", Foreground: "CabinetWClass"},

	{Name: "explorer", Kind: KindAllow, Class: "CabinetWClass"},
	{Name: "uwp-frame", Kind: KindAllow, Class: "ApplicationFrameWindow"},
	{Name: "chromium", Kind: KindAllow, Class: "Chrome_WidgetWin", Match: MatchContains},

	{Name: "desktop", Kind: KindBlock, Class: "SHELLDLL_DefView"},
	{Name: "desktop-progman", Kind: KindBlock, Class: "Progman"},
	{Name: "desktop-worker", Kind: KindBlock, Class: "WorkerW"},
	{Name: "tray", Kind: KindBlock, Class: "Shell_TrayWnd"},
	{Name: "tray-notify", Kind: KindBlock, Class: "TrayNotifyWnd"},
	{Name: "taskbar-icons", Kind: KindBlock, Class: "MSTaskSwWClass"},
	{Name: "start-menu", Kind: KindBlock, Class: "Windows.UI.Core.CoreWindow"},
	{Name: "game-overlay", Kind: KindBlock, Class: "CEF-OSC-WIDGET"},
	{Name: "plasma-panel", Kind: KindBlock, Class: "plasmashell"},
	{Name: "xfce-panel", Kind: KindBlock, Class: "Xfce4-panel"},
	{Name: "polybar", Kind: KindBlock, Class: "Polybar"},
	{Name: "plank", Kind: KindBlock, Class: "Plank"},
}

// RuleSet holds rules grouped by kind. Within a kind, rules are tried in
// the order they were added.
type RuleSet struct {
	pause []Rule
	pair  []Rule
	allow []Rule
	block []Rule
}

// NewRuleSet validates rules and groups them. Empty Match fields default
// to exact.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if r.Match == "" {
			r.Match = MatchExact
		}
		if r.ForegroundMatch == "" {
			r.ForegroundMatch = MatchExact
		}
		switch r.Kind {
		case KindPause:
			rs.pause = append(rs.pause, r)
		case KindPair:
			rs.pair = append(rs.pair, r)
		case KindAllow:
			rs.allow = append(rs.allow, r)
		case KindBlock:
			rs.block = append(rs.block, r)
		}
	}
	return rs, nil
}

// Default returns the built-in rule set followed by extra rules.
func Default(extra ...Rule) (*RuleSet, error) {
	rules := make([]Rule, 0, len(DefaultRules)+len(extra))
	rules = append(rules, DefaultRules...)
	rules = append(rules, extra...)
	return NewRuleSet(rules...)
}

// Rules returns every rule in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(rs.pause)+len(rs.pair)+len(rs.allow)+len(rs.block))
	out = append(out, rs.pause...)
	out = append(out, rs.pair...)
	out = append(out, rs.allow...)
	out = append(out, rs.block...)
	return out
}

// Paused returns the pause rule matching the foreground class.
func (rs *RuleSet) Paused(foregroundClass string) (Rule, bool) {
	for _, r := range rs.pause {
		if r.matchesClass(foregroundClass) {
			return r, true
		}
	}
	return Rule{}, false
}

// Paired returns the pair rule matching the cursor and foreground classes.
func (rs *RuleSet) Paired(cursorClass, foregroundClass string) (Rule, bool) {
	for _, r := range rs.pair {
		if r.matchesClass(cursorClass) && r.matchesForeground(foregroundClass) {
			return r, true
		}
	}
	return Rule{}, false
}

// Allowed returns the first allow rule matching any of the classes.
func (rs *RuleSet) Allowed(classes ...string) (Rule, bool) {
	return firstMatch(rs.allow, classes)
}

// Blocked returns the first block rule matching any of the classes.
func (rs *RuleSet) Blocked(classes ...string) (Rule, bool) {
	return firstMatch(rs.block, classes)
}

func firstMatch(rules []Rule, classes []string) (Rule, bool) {
	for _, r := range rules {
		for _, class := range classes {
			if r.matchesClass(class) {
				return r, true
			}
		}
	}
	return Rule{}, false
}
