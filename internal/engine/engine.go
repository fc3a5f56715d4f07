package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trayline/internal/config"
	"trayline/internal/domain"
	"trayline/internal/events"
	"trayline/internal/repo"
)

// ErrConflict marks operations rejected because the target already exists
// in a state that forbids them.
var ErrConflict = errors.New("conflict")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	return &Engine{
		DB:     db,
		Repo:   repo.New(db),
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e *Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.Now
	return w.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload)
}

func validMealType(mealType string) bool {
	switch mealType {
	case domain.MealMorning, domain.MealEvening, domain.MealNight:
		return true
	}
	return false
}

func validPreparationStatus(status string) bool {
	switch status {
	case domain.PrepPending, domain.PrepInProgress, domain.PrepPrepared:
		return true
	}
	return false
}

type CreateMealTaskInput struct {
	PatientID   string
	MealType    string
	AssignedTo  string
	FoodChartID *string
}

// CreateMealTask validates references and roles, then persists the task
// with both status axes at pending.
func (e *Engine) CreateMealTask(ctx context.Context, in CreateMealTaskInput, actorID string) (domain.MealTask, error) {
	if in.PatientID == "" {
		return domain.MealTask{}, fmt.Errorf("patient_id is required")
	}
	if in.MealType == "" {
		return domain.MealTask{}, fmt.Errorf("meal_type is required")
	}
	if in.AssignedTo == "" {
		return domain.MealTask{}, fmt.Errorf("assigned_to is required")
	}
	if !validMealType(in.MealType) {
		return domain.MealTask{}, fmt.Errorf("invalid meal type %q", in.MealType)
	}
	if _, err := e.Repo.GetPatient(ctx, in.PatientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.MealTask{}, fmt.Errorf("invalid patient reference %s", in.PatientID)
		}
		return domain.MealTask{}, err
	}
	assignee, err := e.Repo.GetUser(ctx, in.AssignedTo)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.MealTask{}, fmt.Errorf("invalid assignee reference %s", in.AssignedTo)
		}
		return domain.MealTask{}, err
	}
	if assignee.Role != domain.RolePantryStaff {
		return domain.MealTask{}, fmt.Errorf("invalid assignee: user %s is not pantry staff", in.AssignedTo)
	}
	if in.FoodChartID != nil {
		chart, err := e.Repo.GetFoodChart(ctx, *in.FoodChartID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.MealTask{}, fmt.Errorf("invalid food chart reference %s", *in.FoodChartID)
			}
			return domain.MealTask{}, err
		}
		if chart.PatientID != in.PatientID {
			return domain.MealTask{}, fmt.Errorf("invalid food chart reference: chart %s belongs to another patient", *in.FoodChartID)
		}
	}

	ts := e.timestamp()
	task := domain.MealTask{
		ID:                uuid.NewString(),
		PatientID:         in.PatientID,
		FoodChartID:       in.FoodChartID,
		MealType:          in.MealType,
		AssignedTo:        in.AssignedTo,
		PreparationStatus: domain.PrepPending,
		DeliveryStatus:    domain.DeliveryPending,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MealTask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMealTask(ctx, tx, task); err != nil {
		return domain.MealTask{}, err
	}
	if err := e.appendEvent(ctx, tx, "meal_task.created", "meal_task", task.ID, actorID, events.EventPayload{
		"patient_id":  task.PatientID,
		"meal_type":   task.MealType,
		"assigned_to": task.AssignedTo,
	}); err != nil {
		return domain.MealTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MealTask{}, err
	}
	return task, nil
}

// SetPreparationStatus writes the pantry axis. Any of the three values may
// be set from any current value; the axis is a status board, not a ratchet.
func (e *Engine) SetPreparationStatus(ctx context.Context, taskID, status, actorID string) (domain.MealTask, error) {
	if !validPreparationStatus(status) {
		return domain.MealTask{}, fmt.Errorf("invalid preparation status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MealTask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetPreparationStatus(ctx, tx, taskID, status, e.timestamp()); err != nil {
		return domain.MealTask{}, err
	}
	if err := e.appendEvent(ctx, tx, "meal_task.preparation_status", "meal_task", taskID, actorID, events.EventPayload{
		"preparation_status": status,
	}); err != nil {
		return domain.MealTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MealTask{}, err
	}
	return e.Repo.GetMealTask(ctx, taskID)
}

// AssignDeliveryPersonnel links a courier to the task and moves the delivery
// axis to out_for_delivery. The target user must hold the delivery role.
func (e *Engine) AssignDeliveryPersonnel(ctx context.Context, taskID, personnelID, actorID string) (domain.MealTask, error) {
	if personnelID == "" {
		return domain.MealTask{}, fmt.Errorf("delivery_personnel_id is required")
	}
	courier, err := e.Repo.GetUser(ctx, personnelID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.MealTask{}, fmt.Errorf("invalid delivery personnel reference %s", personnelID)
		}
		return domain.MealTask{}, err
	}
	if courier.Role != domain.RoleDeliveryPersonnel {
		return domain.MealTask{}, fmt.Errorf("invalid delivery assignment: user %s is not delivery personnel", personnelID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MealTask{}, err
	}
	defer tx.Rollback()
	ts := e.timestamp()
	if err := e.Repo.SetDeliveryAssignment(ctx, tx, taskID, personnelID, ts); err != nil {
		return domain.MealTask{}, err
	}
	if err := e.Repo.AddNotificationTx(ctx, tx, domain.Notification{
		ID:        uuid.NewString(),
		UserID:    personnelID,
		Message:   fmt.Sprintf("You have been assigned to deliver meal task %s", taskID),
		Timestamp: ts,
	}); err != nil {
		return domain.MealTask{}, err
	}
	if err := e.appendEvent(ctx, tx, "meal_task.delivery_assigned", "meal_task", taskID, actorID, events.EventPayload{
		"delivery_personnel_id": personnelID,
	}); err != nil {
		return domain.MealTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MealTask{}, err
	}
	return e.Repo.GetMealTask(ctx, taskID)
}

// MarkDelivered finalizes the delivery axis and stamps when the tray
// reached the patient. Optional notes from the courier are kept with it.
func (e *Engine) MarkDelivered(ctx context.Context, taskID string, notes *string, actorID string) (domain.MealTask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MealTask{}, err
	}
	defer tx.Rollback()
	ts := e.timestamp()
	if err := e.Repo.SetDelivered(ctx, tx, taskID, ts, notes, ts); err != nil {
		return domain.MealTask{}, err
	}
	payload := events.EventPayload{"delivery_timestamp": ts}
	if notes != nil {
		payload["delivery_notes"] = *notes
	}
	if err := e.appendEvent(ctx, tx, "meal_task.delivered", "meal_task", taskID, actorID, payload); err != nil {
		return domain.MealTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MealTask{}, err
	}
	return e.Repo.GetMealTask(ctx, taskID)
}

// GetMealTask fetches one task.
func (e *Engine) GetMealTask(ctx context.Context, id string) (domain.MealTask, error) {
	return e.Repo.GetMealTask(ctx, id)
}

// ListMealTasks returns tasks matching the filters, oldest first.
func (e *Engine) ListMealTasks(ctx context.Context, f repo.TaskFilters) ([]domain.MealTask, error) {
	return e.Repo.ListMealTasks(ctx, f)
}

// AssignedMealTasks returns tasks whose pantry assignee is the given user.
func (e *Engine) AssignedMealTasks(ctx context.Context, userID string) ([]domain.MealTask, error) {
	return e.Repo.ListMealTasks(ctx, repo.TaskFilters{AssignedTo: userID})
}

// PreparedMealTasks returns tasks whose pantry work is done, whatever the
// delivery axis says.
func (e *Engine) PreparedMealTasks(ctx context.Context) ([]domain.MealTask, error) {
	return e.Repo.ListMealTasks(ctx, repo.TaskFilters{PreparationStatus: domain.PrepPrepared})
}
