package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	v, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+30), v)
	assert.Equal(t, "09:30", v.String())

	v, err = ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, "00:00", v.String())

	v, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, "23:59", v.String())

	for _, bad := range []string{"24:00", "12:60", "garbage", ""} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTimeOfDayAddMinutes(t *testing.T) {
	v, err := ParseTimeOfDay("09:45")
	require.NoError(t, err)
	assert.Equal(t, "10:15", v.AddMinutes(30).String())
}

func TestDayOfWeekMondayZero(t *testing.T) {
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	assert.Equal(t, 0, DayOfWeek(monday))
	assert.Equal(t, 5, DayOfWeek(monday.AddDate(0, 0, 5))) // Saturday
	assert.Equal(t, 6, DayOfWeek(monday.AddDate(0, 0, 6))) // Sunday
}

func TestRuleAllowsModality(t *testing.T) {
	rule := WeeklyRule{AllowsVirtual: true, AllowsInPerson: false}

	assert.True(t, rule.AllowsModality(ModalityVirtual))
	assert.False(t, rule.AllowsModality(ModalityInPerson))
	// Phone is not gated by the rule flags.
	assert.True(t, rule.AllowsModality(ModalityPhone))

	assert.Equal(t, []Modality{ModalityVirtual}, rule.Modalities())
}
