package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trayline/internal/domain"
	"trayline/internal/events"
	"trayline/internal/repo"
)

type FoodChartInput struct {
	PatientID string
	Morning   domain.Meal
	Evening   domain.Meal
	Night     domain.Meal
}

// CreateFoodChart stores the daily meal plan for a patient. A patient can
// hold at most one chart; replacing it goes through UpdateFoodChart.
func (e *Engine) CreateFoodChart(ctx context.Context, in FoodChartInput, actorID string) (domain.FoodChart, error) {
	if in.PatientID == "" {
		return domain.FoodChart{}, fmt.Errorf("patient_id is required")
	}
	if _, err := e.Repo.GetPatient(ctx, in.PatientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.FoodChart{}, fmt.Errorf("invalid patient reference %s", in.PatientID)
		}
		return domain.FoodChart{}, err
	}
	if _, err := e.Repo.GetFoodChartByPatient(ctx, in.PatientID); err == nil {
		return domain.FoodChart{}, fmt.Errorf("%w: food chart already exists for patient %s", ErrConflict, in.PatientID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.FoodChart{}, err
	}

	ts := e.timestamp()
	chart := domain.FoodChart{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		Morning:   in.Morning,
		Evening:   in.Evening,
		Night:     in.Night,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.FoodChart{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFoodChart(ctx, tx, chart); err != nil {
		return domain.FoodChart{}, err
	}
	if err := e.appendEvent(ctx, tx, "food_chart.created", "food_chart", chart.ID, actorID, events.EventPayload{
		"patient_id": chart.PatientID,
	}); err != nil {
		return domain.FoodChart{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FoodChart{}, err
	}
	return chart, nil
}

func (e *Engine) GetFoodChart(ctx context.Context, id string) (domain.FoodChart, error) {
	return e.Repo.GetFoodChart(ctx, id)
}

func (e *Engine) GetFoodChartByPatient(ctx context.Context, patientID string) (domain.FoodChart, error) {
	return e.Repo.GetFoodChartByPatient(ctx, patientID)
}

func (e *Engine) ListFoodCharts(ctx context.Context) ([]domain.FoodChart, error) {
	return e.Repo.ListFoodCharts(ctx)
}

func (e *Engine) UpdateFoodChart(ctx context.Context, id string, morning, evening, night domain.Meal, actorID string) (domain.FoodChart, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.FoodChart{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateFoodChartMeals(ctx, tx, id, morning, evening, night, e.timestamp()); err != nil {
		return domain.FoodChart{}, err
	}
	if err := e.appendEvent(ctx, tx, "food_chart.updated", "food_chart", id, actorID, nil); err != nil {
		return domain.FoodChart{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FoodChart{}, err
	}
	return e.Repo.GetFoodChart(ctx, id)
}

func (e *Engine) DeleteFoodChart(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteFoodChart(ctx, tx, id); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "food_chart.deleted", "food_chart", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
