package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// ScheduleTemplateRepository reads schedule templates. Templates are managed
// by the fleet side; the engine never writes them.
type ScheduleTemplateRepository struct {
	db DB
}

// NewScheduleTemplateRepository creates a new ScheduleTemplateRepository
func NewScheduleTemplateRepository(db DB) *ScheduleTemplateRepository {
	return &ScheduleTemplateRepository{db: db}
}

const scheduleTemplateColumns = `
	st.id, st.origin, st.destination, st.bus_id, b.capacity AS bus_capacity,
	to_char(st.departure_time, 'HH24:MI:SS') AS departure_time,
	st.duration_hours, st.fare, st.frequency, st.weekdays, st.is_active,
	st.created_at, st.updated_at`

// ListActive returns every active template with its bus capacity
func (r *ScheduleTemplateRepository) ListActive(ctx context.Context) ([]models.ScheduleTemplate, error) {
	query := `
		SELECT ` + scheduleTemplateColumns + `
		FROM schedule_templates st
		JOIN buses b ON b.id = st.bus_id
		WHERE st.is_active = TRUE
		ORDER BY st.origin, st.destination, st.departure_time`

	var templates []models.ScheduleTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("failed to list active templates: %w", err)
	}
	return templates, nil
}

// GetByID returns a template, active or not
func (r *ScheduleTemplateRepository) GetByID(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	query := `
		SELECT ` + scheduleTemplateColumns + `
		FROM schedule_templates st
		JOIN buses b ON b.id = st.bus_id
		WHERE st.id = $1`

	var tmpl models.ScheduleTemplate
	err := r.db.GetContext(ctx, &tmpl, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "schedule template", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tmpl, nil
}
