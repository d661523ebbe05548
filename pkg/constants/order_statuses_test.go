package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{StatusNew, StatusAwaitingPayment}:       true,
		{StatusNew, StatusCancelled}:             true,
		{StatusAwaitingPayment, StatusPaid}:      true,
		{StatusAwaitingPayment, StatusCancelled}: true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.Equal(t, allowed[[2]OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("", StatusNew))
}

func TestFinalStatuses(t *testing.T) {
	for _, s := range FinalStatuses {
		assert.True(t, IsFinalStatus(s))
		assert.Empty(t, NextStatuses(s))
	}
	assert.False(t, IsFinalStatus(StatusNew))
	assert.False(t, IsKnownStatus("shipped"))
}

func TestIsReminderOption(t *testing.T) {
	assert.True(t, IsReminderOption(15))
	assert.True(t, IsReminderOption(1440))
	assert.False(t, IsReminderOption(0))
	assert.False(t, IsReminderOption(7))
}
