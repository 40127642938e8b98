package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func rolesByEmail(tasks []model.RecipientTask) map[string]model.Role {
	out := map[string]model.Role{}
	for _, t := range tasks {
		out[t.Email] = t.Role
	}
	return out
}

func TestDeduplicateEmitsOneTaskPerDistinctAddress(t *testing.T) {
	tasks := service.Deduplicate("c1",
		[]string{"A@example.com", " a@example.com ", "b@example.com"},
		nil,
		[]string{"B@Example.com"},
		[]string{"c@example.com", "C@EXAMPLE.COM"},
	)

	require.Len(t, tasks, 3)
	roles := rolesByEmail(tasks)
	assert.Equal(t, model.RoleNone, roles["a@example.com"])
	assert.Equal(t, model.RoleCC, roles["b@example.com"])
	assert.Equal(t, model.RoleBCC, roles["c@example.com"])
}

func TestDeduplicateRolePrecedence(t *testing.T) {
	// An address in both the target list and cc gets the explicit role.
	tasks := service.Deduplicate("c1",
		[]string{"a@example.com"},
		nil,
		[]string{"a@example.com"},
		nil,
	)

	require.Len(t, tasks, 1)
	assert.Equal(t, model.RoleCC, tasks[0].Role)
}

func TestDeduplicateFirstSeenWinsAcrossExplicitLists(t *testing.T) {
	// cc before bcc, to before both.
	tasks := service.Deduplicate("c1",
		nil,
		[]string{"x@example.com"},
		[]string{"x@example.com", "y@example.com"},
		[]string{"y@example.com", "z@example.com"},
	)

	roles := rolesByEmail(tasks)
	require.Len(t, tasks, 3)
	assert.Equal(t, model.RoleTo, roles["x@example.com"])
	assert.Equal(t, model.RoleCC, roles["y@example.com"])
	assert.Equal(t, model.RoleBCC, roles["z@example.com"])
}

func TestDeduplicateScenario(t *testing.T) {
	// target=[x,y], cc=[y,z] -> (x,none), (y,cc), (z,cc)
	tasks := service.Deduplicate("c1",
		[]string{"x@example.com", "y@example.com"},
		nil,
		[]string{"y@example.com", "z@example.com"},
		nil,
	)

	require.Len(t, tasks, 3)
	roles := rolesByEmail(tasks)
	assert.Equal(t, model.RoleNone, roles["x@example.com"])
	assert.Equal(t, model.RoleCC, roles["y@example.com"])
	assert.Equal(t, model.RoleCC, roles["z@example.com"])
}

func TestDeduplicateDropsInvalidAndEmpty(t *testing.T) {
	tasks := service.Deduplicate("c1",
		[]string{"", "   ", "not-an-address", "ok@example.com"},
		nil, nil, nil,
	)

	require.Len(t, tasks, 1)
	assert.Equal(t, "ok@example.com", tasks[0].Email)
}

func TestDeduplicateEmptyInputs(t *testing.T) {
	tasks := service.Deduplicate("c1", nil, nil, nil, nil)
	assert.Empty(t, tasks)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "a@b.com", service.NormalizeAddress("  A@B.Com "))
	assert.Equal(t, "", service.NormalizeAddress("nope"))
	assert.Equal(t, "", service.NormalizeAddress("   "))
}

func TestNormalizeListKeepsOrderDropsDuplicates(t *testing.T) {
	out := service.NormalizeList([]string{"B@x.com", "a@x.com", "b@X.com", "bad"})
	assert.Equal(t, []string{"b@x.com", "a@x.com"}, out)
}
