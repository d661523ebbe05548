package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneE164(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"067 123 45 67", "+380671234567"},
		{"+38 (067) 123-45-67", "+380671234567"},
		{"380671234567", "+380671234567"},
		{"+48 512 345 678", "+48512345678"},
		{"12345", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhoneE164(tc.in))
		})
	}
	assert.Equal(t, "", NormalizeUAPhoneNumber("+48 512 345 678"))
}

func TestPrettyUAPhone(t *testing.T) {
	assert.Equal(t, "+38•067•123•45•67", PrettyUAPhone("+380671234567"))
	assert.Equal(t, "+48512345678", PrettyUAPhone("+48512345678"))
}

func TestFormatAge(t *testing.T) {
	testCases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "<1хв"},
		{40 * time.Minute, "40хв"},
		{2*time.Hour + 15*time.Minute, "2г 15хв"},
		{3 * time.Hour, "3г"},
		{27*time.Hour + 10*time.Minute, "1д 3г"},
		{48 * time.Hour, "2д"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatAge(tc.d))
		})
	}
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Atlantis"))
}
