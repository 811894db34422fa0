// Package router selects the ordered platforms a workflow is compiled
// against. The classifier's ranking is the starting point; policies may veto
// or reorder it.
package router

import (
	"slices"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
)

// Policy rewrites a ranked platform list. Implementations must be
// deterministic for a given input and snapshot.
type Policy interface {
	Apply(ranked []string, snap platform.Snapshot) []string
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ranked []string, snap platform.Snapshot) []string

// Apply calls f.
func (f PolicyFunc) Apply(ranked []string, snap platform.Snapshot) []string {
	return f(ranked, snap)
}

// Router applies its policies, in order, to a complexity's recommendation.
type Router struct {
	policies []Policy
}

// New creates a router with the given policies.
func New(policies ...Policy) *Router {
	return &Router{policies: policies}
}

// SelectPlatformsForWorkflow returns the ordered platform ids for a workflow.
// With no policies it is the classifier's recommendation unchanged.
func (r *Router) SelectPlatformsForWorkflow(c model.TaskComplexity, snap platform.Snapshot) []string {
	ranked := slices.Clone(c.RecommendedPlatforms)
	for _, p := range r.policies {
		ranked = p.Apply(ranked, snap)
	}
	if ranked == nil {
		ranked = []string{}
	}
	return ranked
}

// ExcludePolicy drops the listed platform ids from the ranking.
func ExcludePolicy(ids ...string) Policy {
	excluded := make(map[string]bool, len(ids))
	for _, id := range ids {
		excluded[id] = true
	}
	return PolicyFunc(func(ranked []string, _ platform.Snapshot) []string {
		return slices.DeleteFunc(ranked, func(id string) bool { return excluded[id] })
	})
}
