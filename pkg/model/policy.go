package model

import "studiobook/pkg/civiltime"

// StudioPolicy carries the scheduling and billing constants of a studio kind.
type StudioPolicy struct {
	OpenAt           civiltime.TimeOfDay
	CloseAt          civiltime.TimeOfDay
	GapMinutes       int
	ExtraSlabMinutes int
	ExtraRatePerSlab int64
	MaxQuantity      int
}

type Policies map[StudioKind]StudioPolicy

func (p Policies) For(kind StudioKind) (StudioPolicy, bool) {
	policy, ok := p[kind]
	return policy, ok
}
