package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Chronos/internal/domain"
)

// CreateScheduleRequest — запрос на создание schedule.
//
// Ровно одно из FireAt / CronExpr / IntervalSec должно быть задано.
type CreateScheduleRequest struct {
	Name           string        `json:"name"`
	FireAt         *time.Time    `json:"fire_at,omitempty"`
	CronExpr       string        `json:"cron_expr,omitempty"`
	IntervalSec    int           `json:"interval_sec,omitempty"`
	RepeatCount    *int          `json:"repeat_count,omitempty"`
	Timezone       string        `json:"timezone,omitempty"`
	Action         domain.Action `json:"action"`
	RecoveryPolicy string        `json:"recovery_policy,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name           *string        `json:"name,omitempty"`
	FireAt         *time.Time     `json:"fire_at,omitempty"`
	CronExpr       *string        `json:"cron_expr,omitempty"`
	IntervalSec    *int           `json:"interval_sec,omitempty"`
	RepeatCount    *int           `json:"repeat_count,omitempty"`
	Timezone       *string        `json:"timezone,omitempty"`
	Action         *domain.Action `json:"action,omitempty"`
	RecoveryPolicy *string        `json:"recovery_policy,omitempty"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID                   uuid.UUID     `json:"id"`
	Name                 string        `json:"name,omitempty"`
	FireAt               *time.Time    `json:"fire_at,omitempty"`
	CronExpr             string        `json:"cron_expr,omitempty"`
	IntervalSec          int           `json:"interval_sec,omitempty"`
	RepeatCountRemaining *int          `json:"repeat_count_remaining,omitempty"`
	Timezone             string        `json:"timezone"`
	Action               domain.Action `json:"action"`
	State                string        `json:"state"`
	NextFireAt           *time.Time    `json:"next_fire_at,omitempty"`
	Owner                string        `json:"owner,omitempty"`
	Version              int64         `json:"version"`
	RecoveryPolicy       string        `json:"recovery_policy,omitempty"`
	LastFiredAt          *time.Time    `json:"last_fired_at,omitempty"`
	LastError            string        `json:"last_error,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:                   s.ID,
		Name:                 s.Name,
		FireAt:               s.FireAt,
		CronExpr:             s.CronExpr,
		IntervalSec:          s.IntervalSec,
		RepeatCountRemaining: s.RepeatCountRemaining,
		Timezone:             s.Timezone,
		Action:               s.Action,
		State:                string(s.State),
		NextFireAt:           s.NextFireAt,
		Owner:                s.Owner,
		Version:              s.Version,
		RecoveryPolicy:       string(s.RecoveryPolicy),
		LastFiredAt:          s.LastFiredAt,
		LastError:            s.LastError,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}
