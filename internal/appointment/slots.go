package appointment

import (
	"fmt"
	"strings"
	"time"
)

// Slot is a time of day in HH:MM form.
type Slot string

func ParseSlot(s string) (Slot, error) {
	t, err := time.Parse(SlotLayout, strings.TrimSpace(s))
	if err != nil {
		return "", &ValidationError{Field: "slot", Reason: fmt.Sprintf("%q is not HH:MM", s)}
	}
	return Slot(t.Format(SlotLayout)), nil
}

// SlotCatalog is the ordered set of bookable slots offered every day. It is
// built once at startup and never mutated.
type SlotCatalog struct {
	slots []Slot
	index map[Slot]int
}

// NewSlotCatalog builds a catalog from an explicit list. Entries must be
// valid HH:MM values in strictly ascending order.
func NewSlotCatalog(values []string) (*SlotCatalog, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("slot catalog: at least one slot required")
	}
	c := &SlotCatalog{
		slots: make([]Slot, 0, len(values)),
		index: make(map[Slot]int, len(values)),
	}
	for i, v := range values {
		s, err := ParseSlot(v)
		if err != nil {
			return nil, fmt.Errorf("slot catalog: %w", err)
		}
		if i > 0 && s <= c.slots[i-1] {
			return nil, fmt.Errorf("slot catalog: %s must come after %s", s, c.slots[i-1])
		}
		c.index[s] = i
		c.slots = append(c.slots, s)
	}
	return c, nil
}

// NewIntervalCatalog generates slots from start (inclusive) to end
// (exclusive) every step.
func NewIntervalCatalog(start, end string, step time.Duration) (*SlotCatalog, error) {
	if step <= 0 || step%time.Minute != 0 {
		return nil, fmt.Errorf("slot catalog: step must be a positive whole number of minutes, got %s", step)
	}
	from, err := time.Parse(SlotLayout, start)
	if err != nil {
		return nil, fmt.Errorf("slot catalog: invalid start %q", start)
	}
	to, err := time.Parse(SlotLayout, end)
	if err != nil {
		return nil, fmt.Errorf("slot catalog: invalid end %q", end)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("slot catalog: start %s must be before end %s", start, end)
	}

	var values []string
	for t := from; t.Before(to); t = t.Add(step) {
		values = append(values, t.Format(SlotLayout))
	}
	return NewSlotCatalog(values)
}

func (c *SlotCatalog) Contains(s Slot) bool {
	_, ok := c.index[s]
	return ok
}

// Slots returns a copy of the catalog in order.
func (c *SlotCatalog) Slots() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *SlotCatalog) Len() int {
	return len(c.slots)
}

