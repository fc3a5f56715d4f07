package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trayline/internal/domain"
)

const chartColumns = `id,patient_id,morning_json,evening_json,night_json,created_at,updated_at`

func mealJSON(m domain.Meal) string {
	if m.Ingredients == nil {
		m.Ingredients = []string{}
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func parseMeal(raw string) (domain.Meal, error) {
	var m domain.Meal
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.Meal{}, fmt.Errorf("parse meal json: %w", err)
	}
	return m, nil
}

func (r Repo) InsertFoodChart(ctx context.Context, tx *sql.Tx, c domain.FoodChart) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO food_charts(`+chartColumns+`)
		VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.PatientID, mealJSON(c.Morning), mealJSON(c.Evening), mealJSON(c.Night),
		c.CreatedAt, c.UpdatedAt)
	return err
}

func scanFoodChart(row interface{ Scan(...any) error }) (domain.FoodChart, error) {
	var c domain.FoodChart
	var morning, evening, night string
	err := row.Scan(&c.ID, &c.PatientID, &morning, &evening, &night, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.FoodChart{}, err
	}
	if c.Morning, err = parseMeal(morning); err != nil {
		return domain.FoodChart{}, err
	}
	if c.Evening, err = parseMeal(evening); err != nil {
		return domain.FoodChart{}, err
	}
	if c.Night, err = parseMeal(night); err != nil {
		return domain.FoodChart{}, err
	}
	return c, nil
}

func (r Repo) GetFoodChart(ctx context.Context, id string) (domain.FoodChart, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+chartColumns+` FROM food_charts WHERE id=?`, id)
	c, err := scanFoodChart(row)
	if err == sql.ErrNoRows {
		return domain.FoodChart{}, ErrNotFound
	}
	return c, err
}

func (r Repo) GetFoodChartByPatient(ctx context.Context, patientID string) (domain.FoodChart, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+chartColumns+` FROM food_charts WHERE patient_id=?`, patientID)
	c, err := scanFoodChart(row)
	if err == sql.ErrNoRows {
		return domain.FoodChart{}, ErrNotFound
	}
	return c, err
}

func (r Repo) ListFoodCharts(ctx context.Context) ([]domain.FoodChart, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+chartColumns+` FROM food_charts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var charts []domain.FoodChart
	for rows.Next() {
		c, err := scanFoodChart(rows)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}
	return charts, rows.Err()
}

func (r Repo) UpdateFoodChartMeals(ctx context.Context, tx *sql.Tx, id string, morning, evening, night domain.Meal, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE food_charts SET morning_json=?, evening_json=?, night_json=?, updated_at=?
		WHERE id=?`,
		mealJSON(morning), mealJSON(evening), mealJSON(night), updatedAt, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r Repo) DeleteFoodChart(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM food_charts WHERE id=?`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}
