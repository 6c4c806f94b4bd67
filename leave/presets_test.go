package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func TestDefaultLeaveTypes_Catalogue(t *testing.T) {
	// GIVEN: The preset catalogue for one office
	// THEN: Metered, exempt and non-deducting types behave as labelled

	types := leave.DefaultLeaveTypes("paris")
	require.Len(t, types, 5)

	byCode := make(map[string]*leave.LeaveTypeConfig, len(types))
	for i := range types {
		lt := &types[i]
		assert.True(t, lt.Active, "%s should start active", lt.Code)
		assert.Equal(t, leave.OfficeID("paris"), lt.Office)
		byCode[lt.Code] = lt
	}

	assert.True(t, byCode["paid"].Deducts())
	assert.Equal(t, "paid", byCode["paid"].BalanceType)
	assert.True(t, byCode["rtt"].Deducts())
	assert.Equal(t, "rtt", byCode["rtt"].BalanceType)

	sick := byCode["sick"]
	assert.True(t, sick.Deducts())
	assert.True(t, sick.RequiresAttachment)
	assert.Equal(t, "3", sick.AttachmentFromDays.String())

	// Exceptional leave goes through approval but never touches a balance.
	assert.False(t, byCode["exceptional"].Deducts())
	assert.True(t, byCode["exceptional"].BalanceExempt)

	assert.False(t, byCode["unpaid"].Deducts())
	assert.False(t, byCode["unpaid"].BalanceExempt)
}

func TestWorkflowPresets_StepLayout(t *testing.T) {
	single := leave.ManagerOnlyWorkflow("wf-1", "paris", "mgr-1")
	require.Len(t, single.Steps, 1)
	assert.Equal(t, leave.StepManager, single.Steps[0].StepType)
	assert.True(t, single.Steps[0].Required)

	two := leave.ManagerThenHRWorkflow("wf-2", "paris", "mgr-1", "hr-1")
	require.Len(t, two.Steps, 2)
	assert.Equal(t, leave.StepManager, two.Steps[0].StepType)
	assert.Equal(t, leave.StepHR, two.Steps[1].StepType)
	assert.Equal(t, leave.ActorID("hr-1"), two.Steps[1].Approver)
}
