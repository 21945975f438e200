package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 3, 7, 14, 5, 9, 0, time.Local)
	rec := NewRecord(640, 480, now)

	assert.Equal(t, 640, rec.Width)
	assert.Equal(t, 480, rec.Height)
	assert.Equal(t, "2024-03-07 14:05:09", rec.Timestamp)
	assert.Equal(t, CurrentVersion, rec.Version)
	require.NoError(t, rec.Validate())

	created, err := rec.CreatedAt()
	require.NoError(t, err)
	assert.True(t, created.Equal(now))
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid", Record{Width: 1, Height: 1, Version: 1}, false},
		{"zero width", Record{Width: 0, Height: 10, Version: 1}, true},
		{"negative height", Record{Width: 10, Height: -3, Version: 1}, true},
		{"unknown version", Record{Width: 10, Height: 10, Version: 2}, true},
		{"missing version", Record{Width: 10, Height: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecord_CreatedAtMalformed(t *testing.T) {
	_, err := Record{Width: 1, Height: 1, Version: 1, Timestamp: "yesterday"}.CreatedAt()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRecord_String(t *testing.T) {
	rec := Record{Width: 100, Height: 60, Version: 1, Timestamp: "2024-01-01 00:00:00"}
	assert.Equal(t, "100x60 (v1, 2024-01-01 00:00:00)", rec.String())
}
