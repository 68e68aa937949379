package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskBudget_Unlimited(t *testing.T) {
	b := NewTaskBudget(0)
	for i := 0; i < 10000; i++ {
		require.NoError(t, b.Take())
	}
	assert.Equal(t, 10000, b.Current())
	assert.Equal(t, 0, b.Limit())
}

func TestTaskBudget_Limit(t *testing.T) {
	b := NewTaskBudget(3)

	require.NoError(t, b.Take())
	require.NoError(t, b.Take())
	require.NoError(t, b.Take())

	err := b.Take()
	require.Error(t, err)
	assert.True(t, IsBudgetExceeded(err))
	assert.Equal(t, 3, b.Current(), "failed take must not consume")
	assert.Contains(t, err.Error(), "task budget of 3")
}

func TestIsBudgetExceeded_Wrapped(t *testing.T) {
	err := fmt.Errorf("build: %w", &BudgetExceededError{Limit: 5})
	assert.True(t, IsBudgetExceeded(err))
	assert.False(t, IsBudgetExceeded(fmt.Errorf("other")))
}
