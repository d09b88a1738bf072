package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"casework/pkg/requestcontext"
)

func actor(roles ...string) requestcontext.ActorInfo {
	return requestcontext.ActorInfo{Roles: roles}
}

func TestCapabilities(t *testing.T) {
	c := NewChecker()

	t.Run("assessor can view, deallocate, reallocate", func(t *testing.T) {
		a := actor(RoleAssessor)
		assert.True(t, c.CanViewAssessment(a))
		assert.True(t, c.CanDeallocateTask(a))
		assert.True(t, c.CanReallocateTask(a))
		assert.False(t, c.CanDeleteApplication(a))
	})

	t.Run("reporter can only view", func(t *testing.T) {
		a := actor(RoleReporter)
		assert.True(t, c.CanViewAssessment(a))
		assert.False(t, c.CanDeallocateTask(a))
		assert.False(t, c.CanReallocateTask(a))
	})

	t.Run("referrer can delete drafts but not touch assessments", func(t *testing.T) {
		a := actor(RoleReferrer)
		assert.True(t, c.CanDeleteApplication(a))
		assert.False(t, c.CanViewAssessment(a))
	})

	t.Run("no roles means no capabilities", func(t *testing.T) {
		a := actor()
		assert.False(t, c.CanViewAssessment(a))
		assert.False(t, c.CanDeallocateTask(a))
		assert.False(t, c.CanReallocateTask(a))
		assert.False(t, c.CanDeleteApplication(a))
	})
}
