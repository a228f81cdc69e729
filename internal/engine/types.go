package engine

import "github.com/tripfetch/tripfetch/internal/domain"

// ItemState is a point-in-time view of one item's progress, served by
// the status API while a run is in flight.
type ItemState struct {
	Name   string            `json:"name"`
	Status domain.ItemStatus `json:"status"`
}
