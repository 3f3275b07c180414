package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}

	return &t
}

func TestNewJoined(t *testing.T) {
	a := Alarm{OccurredAt: ts("2025-01-03 10:00:00"), SiteID: "S1"}
	o := Outage{OccurredAt: ts("2025-01-03 12:30:30"), SiteID: "S1"}

	j, err := NewJoined(a, o)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour+30*time.Minute+30*time.Second, j.Backup)
	assert.InDelta(t, 150.5, j.BackupMinutes, 1e-9)
	assert.NoError(t, j.Validate())
}

func TestNewJoinedSameInstant(t *testing.T) {
	a := Alarm{OccurredAt: ts("2025-01-03 10:00:00")}
	o := Outage{OccurredAt: ts("2025-01-03 10:00:00")}

	j, err := NewJoined(a, o)
	require.NoError(t, err)
	assert.Zero(t, j.Backup)
	assert.Zero(t, j.BackupMinutes)
}

func TestNewJoinedRejects(t *testing.T) {
	_, err := NewJoined(
		Alarm{OccurredAt: ts("2025-01-03 10:00:00")},
		Outage{OccurredAt: ts("2025-01-03 09:59:59")},
	)
	assert.Error(t, err)

	_, err = NewJoined(Alarm{}, Outage{OccurredAt: ts("2025-01-03 10:00:00")})
	assert.Error(t, err)

	_, err = NewJoined(Alarm{OccurredAt: ts("2025-01-03 10:00:00")}, Outage{})
	assert.Error(t, err)
}

func TestValidateTamperedBackup(t *testing.T) {
	j, err := NewJoined(
		Alarm{OccurredAt: ts("2025-01-03 10:00:00")},
		Outage{OccurredAt: ts("2025-01-03 11:00:00")},
	)
	require.NoError(t, err)

	j.Backup = time.Minute
	assert.Error(t, j.Validate())
}

func TestFormatBackup(t *testing.T) {
	assert.Equal(t, "0 days 00:00:00", FormatBackup(0))
	assert.Equal(t, "0 days 02:15:00", FormatBackup(2*time.Hour+15*time.Minute))
	assert.Equal(t, "1 days 01:00:05", FormatBackup(25*time.Hour+5*time.Second))
}
