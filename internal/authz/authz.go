// Package authz holds the capability checks gating lifecycle operations.
// Checks are pure predicates over the requesting user's roles; they have no
// side effects and may be called outside any lock.
package authz

import (
	"slices"

	"casework/pkg/requestcontext"
)

// Role names carried in the actor's role set.
const (
	// RoleReferrer creates and edits draft referral applications.
	RoleReferrer = "referrer"
	// RoleAssessor works allocated assessments: view, update, reject.
	RoleAssessor = "assessor"
	// RoleReporter reads cross-region summary data for reporting.
	RoleReporter = "reporter"
)

// Checker answers capability questions for lifecycle services.
type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

func hasRole(actor requestcontext.ActorInfo, role string) bool {
	return slices.Contains(actor.Roles, role)
}

// CanViewAssessment allows assessors and reporters.
func (c *Checker) CanViewAssessment(actor requestcontext.ActorInfo) bool {
	return hasRole(actor, RoleAssessor) || hasRole(actor, RoleReporter)
}

// CanDeallocateTask allows assessors only.
func (c *Checker) CanDeallocateTask(actor requestcontext.ActorInfo) bool {
	return hasRole(actor, RoleAssessor)
}

// CanReallocateTask allows assessors only.
func (c *Checker) CanReallocateTask(actor requestcontext.ActorInfo) bool {
	return hasRole(actor, RoleAssessor)
}

// CanDeleteApplication is a capability check, not an ownership check: any
// referrer may delete a draft in their region's service.
func (c *Checker) CanDeleteApplication(actor requestcontext.ActorInfo) bool {
	return hasRole(actor, RoleReferrer)
}
