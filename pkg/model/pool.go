package model

import (
	"poolsched/pkg/interval"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBusinessHours is [9, 17).
var DefaultBusinessHours = interval.MustBetween[interval.Int](9, 17)

type Pool struct {
	ID            string            `json:"id" bson:"_id" yaml:"id" validate:"required"`
	Name          string            `json:"name" bson:"name" yaml:"name" validate:"required,min=1,max=100"`
	Address       string            `json:"address" bson:"address" yaml:"address" validate:"required,max=200"`
	Depth         interval.IntRange `json:"depth" bson:"depth" yaml:"depth"`
	BusinessHours interval.IntRange `json:"business_hours" bson:"business_hours" yaml:"business_hours"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at" yaml:"-"`
}

type Lane struct {
	ID          string          `json:"id" bson:"_id" yaml:"id" validate:"required"`
	PoolID      string          `json:"pool_id" bson:"pool_id" yaml:"-" validate:"required"`
	Name        string          `json:"name" bson:"name" yaml:"name" validate:"required,min=1,max=50"`
	MaxSwimmers int             `json:"max_swimmers" bson:"max_swimmers" yaml:"max_swimmers" validate:"required,gt=0,max=32767"`
	PerHourCost decimal.Decimal `json:"per_hour_cost" bson:"per_hour_cost" yaml:"per_hour_cost"`
}

type Locker struct {
	ID          string          `json:"id" bson:"_id" yaml:"id" validate:"required"`
	PoolID      string          `json:"pool_id" bson:"pool_id" yaml:"-" validate:"required"`
	Number      string          `json:"number" bson:"number" yaml:"number" validate:"required,min=1,max=20"`
	PerHourCost decimal.Decimal `json:"per_hour_cost" bson:"per_hour_cost" yaml:"per_hour_cost"`
}

// Closure marks a date range during which a pool is closed. Reservations are
// not checked against closures.
type Closure struct {
	ID     string          `json:"id" bson:"_id" yaml:"id" validate:"required"`
	PoolID string          `json:"pool_id" bson:"pool_id" yaml:"-" validate:"required"`
	Dates  interval.Period `json:"dates" bson:"dates" yaml:"-"`
	Reason string          `json:"reason" bson:"reason" yaml:"reason" validate:"required,max=500"`
}
