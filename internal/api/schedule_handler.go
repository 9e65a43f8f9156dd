package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Chronos/internal/domain"
	"github.com/shaiso/Chronos/internal/repo"
	"github.com/shaiso/Chronos/internal/scheduler"
)

// ListSchedules возвращает список schedules с фильтрацией.
// GET /api/v1/schedules?state=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := repo.ScheduleFilter{}

	// Парсим query параметры
	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		state := domain.ScheduleState(stateStr)
		if !state.Valid() {
			BadRequest(w, "invalid state")
			return
		}
		filter.State = &state
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	} else {
		filter.Limit = 50
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	schedules, err := h.store.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}

	List(w, result, len(result))
}

// CreateSchedule создаёт новый schedule.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Валидация
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	recurrences := 0
	if req.FireAt != nil {
		recurrences++
	}
	if req.CronExpr != "" {
		recurrences++
	}
	if req.IntervalSec != 0 {
		recurrences++
	}
	if recurrences != 1 {
		BadRequest(w, "exactly one of fire_at, cron_expr, interval_sec is required")
		return
	}

	if req.IntervalSec < 0 {
		BadRequest(w, "interval_sec must be positive")
		return
	}

	if req.RepeatCount != nil {
		if *req.RepeatCount <= 0 {
			BadRequest(w, "repeat_count must be positive")
			return
		}
		if req.FireAt != nil {
			BadRequest(w, "repeat_count is not applicable to one-shot schedules")
			return
		}
	}

	if err := req.Action.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	policy := domain.RecoveryPolicy(req.RecoveryPolicy)
	if req.RecoveryPolicy != "" && !policy.Valid() {
		BadRequest(w, "invalid recovery_policy")
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	schedule := &domain.Schedule{
		ID:                   uuid.New(),
		Name:                 req.Name,
		FireAt:               req.FireAt,
		CronExpr:             req.CronExpr,
		IntervalSec:          req.IntervalSec,
		RepeatCountRemaining: req.RepeatCount,
		Timezone:             timezone,
		Action:               req.Action,
		State:                domain.StateActive,
		RecoveryPolicy:       policy,
	}

	if err := scheduler.ValidateRecurrence(schedule); err != nil {
		BadRequest(w, err.Error())
		return
	}

	next, err := scheduler.FirstOccurrence(schedule, h.clock.Now())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	schedule.NextFireAt = &next

	if err := h.store.Create(r.Context(), schedule); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			Conflict(w, "schedule already exists")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ScheduleFromDomain(schedule))
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// UpdateSchedule обновляет schedule.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if schedule.State.IsTerminal() {
		InvalidState(w, "schedule is in terminal state "+string(schedule.State))
		return
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}

	recurrenceChanged := false
	if req.FireAt != nil {
		schedule.FireAt = req.FireAt
		recurrenceChanged = true
	}
	if req.CronExpr != nil {
		schedule.CronExpr = *req.CronExpr
		recurrenceChanged = true
	}
	if req.IntervalSec != nil {
		schedule.IntervalSec = *req.IntervalSec
		recurrenceChanged = true
	}
	if req.Timezone != nil {
		schedule.Timezone = *req.Timezone
		recurrenceChanged = true
	}
	if req.RepeatCount != nil {
		if *req.RepeatCount <= 0 {
			BadRequest(w, "repeat_count must be positive")
			return
		}
		schedule.RepeatCountRemaining = req.RepeatCount
	}
	if req.Action != nil {
		if err := req.Action.Validate(); err != nil {
			BadRequest(w, err.Error())
			return
		}
		schedule.Action = *req.Action
	}
	if req.RecoveryPolicy != nil {
		policy := domain.RecoveryPolicy(*req.RecoveryPolicy)
		if *req.RecoveryPolicy != "" && !policy.Valid() {
			BadRequest(w, "invalid recovery_policy")
			return
		}
		schedule.RecoveryPolicy = policy
	}

	if recurrenceChanged {
		recurrences := 0
		if schedule.FireAt != nil {
			recurrences++
		}
		if schedule.CronExpr != "" {
			recurrences++
		}
		if schedule.IntervalSec != 0 {
			recurrences++
		}
		if recurrences != 1 {
			BadRequest(w, "exactly one of fire_at, cron_expr, interval_sec is required")
			return
		}

		if err := scheduler.ValidateRecurrence(schedule); err != nil {
			BadRequest(w, err.Error())
			return
		}

		// Новое расписание вступает в силу с первого будущего
		// срабатывания; для PAUSED пересчёт откладывается до resume.
		if schedule.State == domain.StateActive {
			next, err := scheduler.FirstOccurrence(schedule, h.clock.Now())
			if err != nil {
				BadRequest(w, err.Error())
				return
			}
			schedule.NextFireAt = &next
		}
	}

	if err := h.store.Update(r.Context(), schedule); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	Success(w, ScheduleFromDomain(schedule))
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// PauseSchedule приостанавливает schedule.
// POST /api/v1/schedules/{id}/pause
func (h *Handler) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if schedule.State != domain.StateActive {
		InvalidState(w, "only ACTIVE schedules can be paused")
		return
	}

	schedule.State = domain.StatePaused

	if err := h.store.Update(r.Context(), schedule); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	Success(w, ScheduleFromDomain(schedule))
}

// ResumeSchedule возобновляет PAUSED schedule.
// POST /api/v1/schedules/{id}/resume
//
// NextFireAt пересчитывается от момента возобновления: пропущенные
// на паузе срабатывания не навёрстываются.
func (h *Handler) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if schedule.State != domain.StatePaused {
		InvalidState(w, "only PAUSED schedules can be resumed")
		return
	}

	next, err := scheduler.FirstOccurrence(schedule, h.clock.Now())
	if err != nil {
		// One-shot, чьё время прошло за время паузы.
		InvalidState(w, err.Error())
		return
	}

	schedule.State = domain.StateActive
	schedule.NextFireAt = &next

	if err := h.store.Update(r.Context(), schedule); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	Success(w, ScheduleFromDomain(schedule))
}

// DisableSchedule административно выключает schedule.
// POST /api/v1/schedules/{id}/disable
//
// Допускается из любого нефинального состояния; обратного перехода
// нет, DISABLED — терминальное состояние.
func (h *Handler) DisableSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if schedule.State.IsTerminal() {
		InvalidState(w, "schedule is in terminal state "+string(schedule.State))
		return
	}

	schedule.State = domain.StateDisabled
	schedule.NextFireAt = nil

	if err := h.store.Update(r.Context(), schedule); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	Success(w, ScheduleFromDomain(schedule))
}

// mustParseInt парсит строку в int64 с дефолтным значением.
func mustParseInt(s string, def int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
