package repo

import (
	"context"
	"database/sql"
	"strings"

	"trayline/internal/domain"
)

const taskColumns = `id,patient_id,food_chart_id,meal_type,assigned_to,preparation_status,delivery_status,delivery_personnel_id,delivery_timestamp,delivery_notes,created_at,updated_at`

func (r Repo) InsertMealTask(ctx context.Context, tx *sql.Tx, t domain.MealTask) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meal_tasks(`+taskColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.PatientID, nullableStringPtr(t.FoodChartID), t.MealType, t.AssignedTo,
		t.PreparationStatus, t.DeliveryStatus, nullableStringPtr(t.DeliveryPersonnelID),
		nullableStringPtr(t.DeliveryTimestamp), nullableStringPtr(t.DeliveryNotes),
		t.CreatedAt, t.UpdatedAt)
	return err
}

func scanMealTask(row interface{ Scan(...any) error }) (domain.MealTask, error) {
	var t domain.MealTask
	var chartID, personnelID, deliveredAt, notes sql.NullString
	err := row.Scan(&t.ID, &t.PatientID, &chartID, &t.MealType, &t.AssignedTo,
		&t.PreparationStatus, &t.DeliveryStatus, &personnelID, &deliveredAt, &notes,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.MealTask{}, err
	}
	if chartID.Valid {
		t.FoodChartID = &chartID.String
	}
	if personnelID.Valid {
		t.DeliveryPersonnelID = &personnelID.String
	}
	if deliveredAt.Valid {
		t.DeliveryTimestamp = &deliveredAt.String
	}
	if notes.Valid {
		t.DeliveryNotes = &notes.String
	}
	return t, nil
}

func (r Repo) GetMealTask(ctx context.Context, id string) (domain.MealTask, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM meal_tasks WHERE id=?`, id)
	t, err := scanMealTask(row)
	if err == sql.ErrNoRows {
		return domain.MealTask{}, ErrNotFound
	}
	return t, err
}

// TaskFilters narrows ListMealTasks. Empty fields match everything.
type TaskFilters struct {
	AssignedTo        string
	PreparationStatus string
	DeliveryStatus    string
}

func (r Repo) ListMealTasks(ctx context.Context, f TaskFilters) ([]domain.MealTask, error) {
	query := `SELECT ` + taskColumns + ` FROM meal_tasks`
	var conds []string
	var args []any
	if f.AssignedTo != "" {
		conds = append(conds, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.PreparationStatus != "" {
		conds = append(conds, "preparation_status=?")
		args = append(args, f.PreparationStatus)
	}
	if f.DeliveryStatus != "" {
		conds = append(conds, "delivery_status=?")
		args = append(args, f.DeliveryStatus)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []domain.MealTask
	for rows.Next() {
		t, err := scanMealTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetPreparationStatus writes the preparation axis in one statement.
// Concurrent writers cannot interleave a read-modify-write here.
func (r Repo) SetPreparationStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE meal_tasks SET preparation_status=?, updated_at=? WHERE id=?`,
		status, updatedAt, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// SetDeliveryAssignment records the courier and moves the delivery axis
// to out_for_delivery in the same statement.
func (r Repo) SetDeliveryAssignment(ctx context.Context, tx *sql.Tx, id, personnelID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE meal_tasks SET delivery_personnel_id=?, delivery_status=?, updated_at=?
		WHERE id=?`,
		personnelID, domain.DeliveryOut, updatedAt, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// SetDelivered finalizes the delivery axis and stamps when it happened.
func (r Repo) SetDelivered(ctx context.Context, tx *sql.Tx, id, deliveredAt string, notes *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE meal_tasks SET delivery_status=?, delivery_timestamp=?, delivery_notes=?, updated_at=?
		WHERE id=?`,
		domain.DeliveryDone, deliveredAt, nullableStringPtr(notes), updatedAt, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r Repo) CountTasksByPreparationStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT preparation_status, COUNT(*) FROM meal_tasks GROUP BY preparation_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
