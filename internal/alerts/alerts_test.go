package alerts_test

import (
	"context"
	"testing"
	"time"

	"trayline/internal/alerts"
	"trayline/internal/config"
	"trayline/internal/db"
	"trayline/internal/domain"
	"trayline/internal/engine"
	"trayline/internal/migrate"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type alertEnv struct {
	Engine   *engine.Engine
	Detector *alerts.Detector
	Ctx      context.Context
	Patient  domain.Patient
	Pantry   domain.User
	Courier  domain.User
}

func newAlertEnv(t *testing.T) alertEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("test-facility"))
	eng.Now = func() time.Time { return baseTime }
	ctx := context.Background()
	pantry, err := eng.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Pat", Email: "pat@test.local", Password: "secret-pw", Role: domain.RolePantryStaff,
	}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	courier, err := eng.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Cory", Email: "cory@test.local", Password: "secret-pw", Role: domain.RoleDeliveryPersonnel,
	}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	patient, err := eng.CreatePatient(ctx, engine.CreatePatientInput{
		Name: "Ada", Age: 36, Gender: "female", RoomNumber: "101", BedNumber: "B", FloorNumber: "1",
	}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	det := alerts.New(eng.Repo, alerts.Config{
		PantryThreshold:   15 * time.Minute,
		DeliveryThreshold: 30 * time.Minute,
	})
	return alertEnv{Engine: eng, Detector: det, Ctx: ctx, Patient: patient, Pantry: pantry, Courier: courier}
}

func (env alertEnv) createTask(t *testing.T) domain.MealTask {
	t.Helper()
	task, err := env.Engine.CreateMealTask(env.Ctx, engine.CreateMealTaskInput{
		PatientID:  env.Patient.ID,
		MealType:   domain.MealMorning,
		AssignedTo: env.Pantry.ID,
	}, "tester")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env alertEnv) scanAt(t *testing.T, at time.Time) []domain.Alert {
	t.Helper()
	env.Detector.Now = func() time.Time { return at }
	items, err := env.Detector.Scan(env.Ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return items
}

func TestNoAlertInsideThreshold(t *testing.T) {
	env := newAlertEnv(t)
	env.createTask(t)
	if items := env.scanAt(t, baseTime.Add(10*time.Minute)); len(items) != 0 {
		t.Fatalf("expected no alerts, got %+v", items)
	}
	// exactly at the threshold is still inside it
	if items := env.scanAt(t, baseTime.Add(15*time.Minute)); len(items) != 0 {
		t.Fatalf("expected no alerts at threshold, got %+v", items)
	}
}

func TestPantryAlertPastThreshold(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	items := env.scanAt(t, baseTime.Add(16*time.Minute))
	if len(items) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(items))
	}
	a := items[0]
	if a.Kind != domain.AlertPantry || a.TaskID != task.ID {
		t.Fatalf("wrong alert: %+v", a)
	}
	if a.PatientName != "Ada" || a.AssignedName != "Pat" {
		t.Fatalf("enrichment wrong: %+v", a)
	}
	if a.ElapsedMinutes != 16 {
		t.Fatalf("elapsed = %d, want 16", a.ElapsedMinutes)
	}
}

func TestPantryAlertCoversInProgress(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepInProgress, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	items := env.scanAt(t, baseTime.Add(20*time.Minute))
	if len(items) != 1 || items[0].Kind != domain.AlertPantry {
		t.Fatalf("expected pantry alert for in_progress, got %+v", items)
	}
}

func TestDeliveryAlertWhileOutForDelivery(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, task.ID, env.Courier.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	// prepared silences the pantry axis even past its threshold
	if items := env.scanAt(t, baseTime.Add(20*time.Minute)); len(items) != 0 {
		t.Fatalf("expected nothing between thresholds, got %+v", items)
	}
	items := env.scanAt(t, baseTime.Add(31*time.Minute))
	if len(items) != 1 || items[0].Kind != domain.AlertDelivery {
		t.Fatalf("expected delivery alert while out for delivery, got %+v", items)
	}
	if items[0].AssignedName != "Cory" {
		t.Fatalf("delivery alert should name the courier, got %q", items[0].AssignedName)
	}
}

func TestNoDeliveryAlertBeforeCourierAssigned(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	// prepared but still waiting for a courier: neither axis is late
	if items := env.scanAt(t, baseTime.Add(31*time.Minute)); len(items) != 0 {
		t.Fatalf("expected no alerts before courier assignment, got %+v", items)
	}
}

func TestBothAlertsWhenUnpreparedAndOutForDelivery(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, task.ID, env.Courier.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	items := env.scanAt(t, baseTime.Add(31*time.Minute))
	if len(items) != 2 {
		t.Fatalf("expected both alerts past both thresholds, got %+v", items)
	}
	kinds := map[string]bool{}
	for _, a := range items {
		kinds[a.Kind] = true
		if a.TaskID != task.ID {
			t.Fatalf("wrong task in alert: %+v", a)
		}
	}
	if !kinds[domain.AlertPantry] || !kinds[domain.AlertDelivery] {
		t.Fatalf("expected pantry and delivery kinds, got %+v", items)
	}
}

func TestDeliveredTaskIsSilent(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.MarkDelivered(env.Ctx, task.ID, nil, env.Courier.ID); err != nil {
		t.Fatal(err)
	}
	if items := env.scanAt(t, baseTime.Add(2*time.Hour)); len(items) != 0 {
		t.Fatalf("delivered task alerted: %+v", items)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	env := newAlertEnv(t)
	env.createTask(t)
	at := baseTime.Add(time.Hour)
	first := env.scanAt(t, at)
	second := env.scanAt(t, at)
	if len(first) != len(second) {
		t.Fatalf("scans diverge: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("scan %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestAlertPersistsUntilStateChanges(t *testing.T) {
	env := newAlertEnv(t)
	task := env.createTask(t)
	if len(env.scanAt(t, baseTime.Add(20*time.Minute))) != 1 {
		t.Fatalf("expected alert at 20m")
	}
	later := env.scanAt(t, baseTime.Add(2*time.Hour))
	if len(later) != 1 {
		t.Fatalf("alert vanished without a state change")
	}
	if later[0].ElapsedMinutes != 120 {
		t.Fatalf("elapsed = %d, want 120", later[0].ElapsedMinutes)
	}
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	// pantry alert cleared; the delivery axis is not out yet
	items := env.scanAt(t, baseTime.Add(20*time.Minute))
	if len(items) != 0 {
		t.Fatalf("expected silence after preparation, got %+v", items)
	}
}

// insertRawTask writes a task row directly, bypassing engine validation,
// so scans can be exercised against references the directory cannot resolve.
func (env alertEnv) insertRawTask(t *testing.T, id, patientID, assignedTo, createdAt string) {
	t.Helper()
	c, err := env.Engine.DB.Conn(env.Ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer c.Close()
	if _, err := c.ExecContext(env.Ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	_, err = c.ExecContext(env.Ctx, `
		INSERT INTO meal_tasks(id,patient_id,food_chart_id,meal_type,assigned_to,
			preparation_status,delivery_status,delivery_personnel_id,
			delivery_timestamp,delivery_notes,created_at,updated_at)
		VALUES (?,?,NULL,'morning',?,'pending','pending',NULL,NULL,NULL,?,?)`,
		id, patientID, assignedTo, createdAt, createdAt)
	if err != nil {
		t.Fatalf("insert raw task: %v", err)
	}
}

func TestDanglingReferencesGetPlaceholders(t *testing.T) {
	env := newAlertEnv(t)
	created := baseTime.Format(time.RFC3339)
	env.insertRawTask(t, "task-ghost", "ghost-patient", "ghost-user", created)
	items := env.scanAt(t, baseTime.Add(31*time.Minute))
	if len(items) != 1 {
		t.Fatalf("expected 1 alert, got %+v", items)
	}
	a := items[0]
	if a.Kind != domain.AlertPantry || a.TaskID != "task-ghost" {
		t.Fatalf("wrong alert: %+v", a)
	}
	if a.PatientName != "(unknown patient)" {
		t.Fatalf("patient placeholder missing: %q", a.PatientName)
	}
	if a.AssignedName != "(unassigned)" {
		t.Fatalf("assignee placeholder missing: %q", a.AssignedName)
	}
}

func TestUnparseableTimestampIsSkipped(t *testing.T) {
	env := newAlertEnv(t)
	env.insertRawTask(t, "task-bad-ts", env.Patient.ID, env.Pantry.ID, "yesterday-ish")
	task := env.createTask(t)
	items := env.scanAt(t, baseTime.Add(31*time.Minute))
	if len(items) != 1 || items[0].TaskID != task.ID {
		t.Fatalf("expected only the well-formed task to alert, got %+v", items)
	}
}
