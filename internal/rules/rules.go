// Package rules evaluates the conditional inclusion predicates attached to
// libraries and argument templates in version manifests. Evaluation is a pure
// function of the rule list and the caller-supplied context; nothing here
// touches the network or filesystem.
package rules

import (
	"regexp"
	"strings"

	"github.com/vk/launchcraft/internal/platform"
)

// Action is the effect of a matching rule.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionDisallow Action = "disallow"
)

// OSMatch restricts a rule to a platform. Empty fields match anything.
// Version is a regular expression matched against the host OS version,
// not an equality test.
type OSMatch struct {
	Name    string `json:"name,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Version string `json:"version,omitempty"`
}

// Rule is one entry of an ordered rule list. A rule with neither an OS match
// nor feature conditions matches unconditionally.
type Rule struct {
	Action   Action          `json:"action"`
	OS       *OSMatch        `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// Context carries the host platform and the set of enabled feature flags a
// rule list is evaluated against. A feature absent from Features is treated
// as disabled, never as an error.
type Context struct {
	Platform platform.Platform
	Features map[string]bool
}

// Evaluate applies an ordered rule list to the context. An empty list allows.
// Rules are considered in declared order and the last matching rule wins;
// if no rule matches, the result is disallow, since the presence of rules
// makes inclusion opt-in.
func Evaluate(ruleList []Rule, ctx Context) bool {
	if len(ruleList) == 0 {
		return true
	}
	allowed := false
	matchedAny := false
	for _, r := range ruleList {
		if !r.matches(ctx) {
			continue
		}
		matchedAny = true
		allowed = r.Action == ActionAllow
	}
	return matchedAny && allowed
}

// matches reports whether every condition on the rule holds for the context.
func (r Rule) matches(ctx Context) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != ctx.Platform.OSName {
			return false
		}
		if r.OS.Arch != "" && !strings.EqualFold(r.OS.Arch, ctx.Platform.Arch) {
			return false
		}
		if r.OS.Version != "" {
			re, err := regexp.Compile(r.OS.Version)
			if err != nil || !re.MatchString(ctx.Platform.OSVersion) {
				return false
			}
		}
	}
	for name, want := range r.Features {
		if ctx.Features[name] != want {
			return false
		}
	}
	return true
}
