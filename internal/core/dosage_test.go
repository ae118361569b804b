package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pharmacy-pos/internal/core"
)

func TestParseDosage(t *testing.T) {
	tests := []struct {
		name      string
		dosage    string
		frequency string
		duration  string
		perDay    int64
		days      int64
		required  int64
		certain   bool
	}{
		{"three times daily for a week", "2 tablets", "three times daily", "7 days", 3, 7, 42, true},
		{"interval in hours", "1 tablet", "every 8 hours", "5 days", 3, 5, 15, true},
		{"every six hours", "1", "every 6 hrs", "3 days", 4, 3, 12, true},
		{"twelve hourly", "1", "12 hourly", "2 days", 2, 2, 4, true},
		{"latin abbreviation", "1 capsule", "tds", "5 days", 3, 5, 15, true},
		{"bd over weeks", "2", "bd", "1 week", 2, 7, 28, true},
		{"once daily over a month", "1", "once daily", "1 month", 1, 30, 30, true},
		{"four times", "1", "Four times a day", "2 days", 4, 2, 8, true},
		{"numeric frequency", "1", "5 times a day", "2 days", 5, 2, 10, true},
		{"numeric times beats bare daily", "1", "3 times daily", "7 days", 3, 7, 21, true},
		{"two times daily", "2", "2 times daily", "5 days", 2, 5, 20, true},
		{"multiplier form", "1", "4x daily", "3 days", 4, 3, 12, true},
		{"other hour interval", "1", "every 4 hours", "2 days", 6, 2, 12, true},
		{"frequency above a dose an hour is capped", "1", "30 times daily", "1 day", 24, 1, 24, false},
		{"all blank defaults to one", "", "", "", 1, 1, 1, false},
		{"zero dosage is defaulted", "0 tablets", "twice", "3 days", 2, 3, 6, false},
		{"unreadable frequency", "1", "as needed", "10 days", 1, 10, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := core.ParseDosage(tt.dosage, tt.frequency, tt.duration)
			assert.Equal(t, tt.perDay, plan.FrequencyPerDay)
			assert.Equal(t, tt.days, plan.DurationDays)
			assert.Equal(t, tt.required, plan.RequiredQuantity)
			assert.Equal(t, tt.certain, plan.Certain())
		})
	}
}

func TestParseDosage_Bounds(t *testing.T) {
	plan := core.ParseDosage("9999999999 tablets", "999999999 per day", "9999999999 days")
	assert.Equal(t, core.MaxDosageQty, plan.DosageQty)
	assert.Equal(t, core.MaxFrequencyPerDay, plan.FrequencyPerDay)
	assert.Equal(t, core.MaxDurationDays, plan.DurationDays)
	assert.Equal(t, core.MaxDosageQty*core.MaxFrequencyPerDay*core.MaxDurationDays, plan.RequiredQuantity)
	assert.True(t, plan.Capped)
	assert.False(t, plan.Certain())

	plan = core.ParseDosage("1", "every 99999999999999999999 hours", "99999999999999999999 months")
	assert.Equal(t, int64(1), plan.FrequencyPerDay)
	assert.Equal(t, core.MaxDurationDays, plan.DurationDays)
	assert.Positive(t, plan.RequiredQuantity)
}
