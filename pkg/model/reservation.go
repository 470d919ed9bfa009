package model

import (
	"poolsched/pkg/interval"
	"time"
)

type Kind string

const (
	KindLane   Kind = "lane"
	KindLocker Kind = "locker"
)

func (k Kind) Valid() bool {
	return k == KindLane || k == KindLocker
}

// Reservation books a lane (for a group of swimmers) or a locker (for one
// user) over Period. Actual records check-in and check-out and starts
// fully unbounded.
type Reservation struct {
	ID         string          `json:"id" bson:"_id" validate:"uuid_or_empty"`
	Kind       Kind            `json:"kind" bson:"kind" validate:"required,oneof=lane locker"`
	ResourceID string          `json:"resource_id" bson:"resource_id" validate:"required"`
	PoolID     string          `json:"pool_id" bson:"pool_id" validate:"required"`
	Users      []string        `json:"users" bson:"users" validate:"dive,required,max=64"`
	Period     interval.Period `json:"period" bson:"period"`
	Actual     interval.Period `json:"actual" bson:"actual"`
	Cancelled  *time.Time      `json:"cancelled,omitempty" bson:"cancelled"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
}

func LaneReservation(laneID, poolID string, period interval.Period, users []string) *Reservation {
	return &Reservation{
		Kind:       KindLane,
		ResourceID: laneID,
		PoolID:     poolID,
		Users:      append([]string(nil), users...),
		Period:     period,
	}
}

func LockerReservation(lockerID, poolID, userID string, period interval.Period) *Reservation {
	return &Reservation{
		Kind:       KindLocker,
		ResourceID: lockerID,
		PoolID:     poolID,
		Users:      []string{userID},
		Period:     period,
	}
}

func (r *Reservation) IsCancelled() bool {
	return r.Cancelled != nil
}

// HasUser reports whether id is one of the reservation's users.
func (r *Reservation) HasUser(id string) bool {
	for _, u := range r.Users {
		if u == id {
			return true
		}
	}
	return false
}

// Duration is the booked length. ok is false for an unbounded period.
func (r *Reservation) Duration() (time.Duration, bool) {
	return interval.Duration(r.Period)
}
