// Package slotcache keeps recently computed slot lists for a short time. Every key
// embeds a per-provider generation; bumping it orphans the provider's entries.
package slotcache

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
)

const DefaultTTL = 15 * time.Second

type wireSlot struct {
	Start time.Time `json:"s"`
	End   time.Time `json:"e"`
}

func encode(slots []availability.Interval) ([]byte, error) {
	out := make([]wireSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, wireSlot{Start: s.Start.UTC(), End: s.End.UTC()})
	}
	return json.Marshal(out)
}

func decode(raw []byte) ([]availability.Interval, error) {
	var in []wireSlot
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]availability.Interval, 0, len(in))
	for _, s := range in {
		out = append(out, availability.Interval{Start: s.Start.UTC(), End: s.End.UTC()})
	}
	return out, nil
}
