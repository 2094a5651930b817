package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntervalCatalog(t *testing.T) {
	c, err := NewIntervalCatalog("08:00", "10:00", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []Slot{"08:00", "08:30", "09:00", "09:30"}, c.Slots())
	assert.True(t, c.Contains("09:30"))
	assert.False(t, c.Contains("10:00"), "end is exclusive")
	assert.False(t, c.Contains("08:15"))
}

func TestNewSlotCatalogValidation(t *testing.T) {
	tests := []struct {
		name   string
		values []string
	}{
		{"empty", nil},
		{"bad format", []string{"8am"}},
		{"out of range", []string{"25:00"}},
		{"unsorted", []string{"09:00", "08:00"}},
		{"duplicate", []string{"08:00", "08:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSlotCatalog(tt.values)
			assert.Error(t, err)
		})
	}
}

func TestNewSlotCatalogNormalizes(t *testing.T) {
	c, err := NewSlotCatalog([]string{"8:00", " 08:30"})
	require.NoError(t, err)
	assert.Equal(t, []Slot{"08:00", "08:30"}, c.Slots())
}

func TestIntervalCatalogRejectsBadStep(t *testing.T) {
	_, err := NewIntervalCatalog("08:00", "10:00", 0)
	assert.Error(t, err)
	_, err = NewIntervalCatalog("08:00", "10:00", 90*time.Second)
	assert.Error(t, err)
	_, err = NewIntervalCatalog("10:00", "08:00", time.Hour)
	assert.Error(t, err)
}

func TestSlotsReturnsCopy(t *testing.T) {
	c, err := NewSlotCatalog([]string{"08:00"})
	require.NoError(t, err)
	s := c.Slots()
	s[0] = "23:59"
	assert.True(t, c.Contains("08:00"))
	assert.Equal(t, Slot("08:00"), c.Slots()[0])
}
