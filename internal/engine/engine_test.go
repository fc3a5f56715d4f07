package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trayline/internal/config"
	"trayline/internal/db"
	"trayline/internal/domain"
	"trayline/internal/engine"
	"trayline/internal/migrate"
	"trayline/internal/repo"
)

type testEnv struct {
	Engine  *engine.Engine
	Ctx     context.Context
	Patient domain.Patient
	Pantry  domain.User
	Courier domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("test-facility")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	pantry, err := eng.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Pat Pantry", Email: "pat@test.local", Password: "secret-pw", Role: domain.RolePantryStaff,
	}, "tester")
	if err != nil {
		t.Fatalf("register pantry: %v", err)
	}
	courier, err := eng.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Cory Courier", Email: "cory@test.local", Password: "secret-pw", Role: domain.RoleDeliveryPersonnel,
	}, "tester")
	if err != nil {
		t.Fatalf("register courier: %v", err)
	}
	patient, err := eng.CreatePatient(ctx, engine.CreatePatientInput{
		Name: "Ada Lovelace", Age: 36, Gender: "female",
		Allergies:  []string{"peanuts"},
		RoomNumber: "101", BedNumber: "B", FloorNumber: "1",
	}, "tester")
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Patient: patient, Pantry: pantry, Courier: courier}
}

func (env testEnv) createTask(t *testing.T) domain.MealTask {
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

func TestCreateMealTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	if task.PreparationStatus != domain.PrepPending {
		t.Fatalf("preparation status = %q, want pending", task.PreparationStatus)
	}
	if task.DeliveryStatus != domain.DeliveryPending {
		t.Fatalf("delivery status = %q, want pending", task.DeliveryStatus)
	}
	if task.DeliveryPersonnelID != nil || task.DeliveryTimestamp != nil {
		t.Fatalf("new task carries delivery data: %+v", task)
	}
	if task.CreatedAt != "2024-01-01T12:00:00Z" {
		t.Fatalf("created at = %q", task.CreatedAt)
	}
}

func TestCreateMealTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		in   engine.CreateMealTaskInput
	}{
		{"missing patient", engine.CreateMealTaskInput{MealType: "morning", AssignedTo: env.Pantry.ID}},
		{"missing meal type", engine.CreateMealTaskInput{PatientID: env.Patient.ID, AssignedTo: env.Pantry.ID}},
		{"missing assignee", engine.CreateMealTaskInput{PatientID: env.Patient.ID, MealType: "morning"}},
		{"bad meal type", engine.CreateMealTaskInput{PatientID: env.Patient.ID, MealType: "brunch", AssignedTo: env.Pantry.ID}},
		{"unknown patient", engine.CreateMealTaskInput{PatientID: "nope", MealType: "morning", AssignedTo: env.Pantry.ID}},
		{"unknown assignee", engine.CreateMealTaskInput{PatientID: env.Patient.ID, MealType: "morning", AssignedTo: "nope"}},
		{"courier as assignee", engine.CreateMealTaskInput{PatientID: env.Patient.ID, MealType: "morning", AssignedTo: env.Courier.ID}},
	}
	for _, tc := range cases {
		if _, err := env.Engine.CreateMealTask(env.Ctx, tc.in, "tester"); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestPreparationStatusMoves(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	task, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepInProgress, env.Pantry.ID)
	if err != nil || task.PreparationStatus != domain.PrepInProgress {
		t.Fatalf("to in_progress: %v (%+v)", err, task)
	}
	task, err = env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID)
	if err != nil || task.PreparationStatus != domain.PrepPrepared {
		t.Fatalf("to prepared: %v", err)
	}
	// delivery axis untouched
	if task.DeliveryStatus != domain.DeliveryPending {
		t.Fatalf("delivery moved with preparation: %q", task.DeliveryStatus)
	}
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, "done", env.Pantry.ID); err == nil {
		t.Fatalf("expected invalid status error")
	}
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, "missing", domain.PrepPrepared, env.Pantry.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignDeliveryPersonnel(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	task, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, task.ID, env.Courier.ID, "tester")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.DeliveryStatus != domain.DeliveryOut {
		t.Fatalf("delivery status = %q, want out_for_delivery", task.DeliveryStatus)
	}
	if task.DeliveryPersonnelID == nil || *task.DeliveryPersonnelID != env.Courier.ID {
		t.Fatalf("personnel not recorded: %+v", task)
	}
	// preparation axis untouched
	if task.PreparationStatus != domain.PrepPending {
		t.Fatalf("preparation moved with delivery: %q", task.PreparationStatus)
	}
	// courier got an inbox entry in the same transaction
	inbox, err := env.Engine.ListNotifications(env.Ctx, env.Courier.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(inbox))
	}
}

func TestAssignDeliveryRoleCheck(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, task.ID, env.Pantry.ID, "tester"); err == nil {
		t.Fatalf("expected role check to reject pantry staff")
	}
	if _, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, task.ID, "nope", "tester"); err == nil {
		t.Fatalf("expected unknown personnel error")
	}
}

func TestMarkDelivered(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	notes := "left at nurse station"
	task, err := env.Engine.MarkDelivered(env.Ctx, task.ID, &notes, env.Courier.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if task.DeliveryStatus != domain.DeliveryDone {
		t.Fatalf("delivery status = %q", task.DeliveryStatus)
	}
	if task.DeliveryTimestamp == nil || *task.DeliveryTimestamp != "2024-01-01T12:00:00Z" {
		t.Fatalf("delivery timestamp = %v", task.DeliveryTimestamp)
	}
	if task.DeliveryNotes == nil || *task.DeliveryNotes != notes {
		t.Fatalf("delivery notes = %v", task.DeliveryNotes)
	}
	if _, err := env.Engine.MarkDelivered(env.Ctx, "missing", nil, env.Courier.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterUserInput{
		Name: "Other Pantry", Email: "other@test.local", Password: "secret-pw", Role: domain.RolePantryStaff,
	}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	t1 := env.createTask(t)
	t2, err := env.Engine.CreateMealTask(env.Ctx, engine.CreateMealTaskInput{
		PatientID: env.Patient.ID, MealType: domain.MealEvening, AssignedTo: other.ID,
	}, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, t2.ID, domain.PrepPrepared, other.ID); err != nil {
		t.Fatal(err)
	}

	all, err := env.Engine.ListMealTasks(env.Ctx, repo.TaskFilters{})
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %v (%d)", err, len(all))
	}
	assigned, err := env.Engine.AssignedMealTasks(env.Ctx, env.Pantry.ID)
	if err != nil || len(assigned) != 1 || assigned[0].ID != t1.ID {
		t.Fatalf("assigned filter: %v (%+v)", err, assigned)
	}
	prepared, err := env.Engine.PreparedMealTasks(env.Ctx)
	if err != nil || len(prepared) != 1 || prepared[0].ID != t2.ID {
		t.Fatalf("prepared filter: %v (%+v)", err, prepared)
	}

	// prepared ignores the delivery axis
	if _, err := env.Engine.AssignDeliveryPersonnel(env.Ctx, t2.ID, env.Courier.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.MarkDelivered(env.Ctx, t2.ID, nil, env.Courier.ID); err != nil {
		t.Fatal(err)
	}
	prepared, err = env.Engine.PreparedMealTasks(env.Ctx)
	if err != nil || len(prepared) != 1 {
		t.Fatalf("prepared after delivery: %v (%d)", err, len(prepared))
	}
}

func TestFoodChartDuplicate(t *testing.T) {
	env := newTestEnv(t)
	in := engine.FoodChartInput{
		PatientID: env.Patient.ID,
		Morning:   domain.Meal{Ingredients: []string{"oats"}, Instructions: "no sugar"},
	}
	if _, err := env.Engine.CreateFoodChart(env.Ctx, in, "tester"); err != nil {
		t.Fatalf("create chart: %v", err)
	}
	_, err := env.Engine.CreateFoodChart(env.Ctx, in, "tester")
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	chart, err := env.Engine.GetFoodChartByPatient(env.Ctx, env.Patient.ID)
	if err != nil {
		t.Fatalf("get by patient: %v", err)
	}
	if len(chart.Morning.Ingredients) != 1 || chart.Morning.Ingredients[0] != "oats" {
		t.Fatalf("chart meals lost: %+v", chart.Morning)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Authenticate(env.Ctx, "pat@test.local", "secret-pw")
	if err != nil || u.ID != env.Pantry.ID {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "pat@test.local", "wrong"); !errors.Is(err, engine.ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "ghost@test.local", "secret-pw"); !errors.Is(err, engine.ErrBadCredentials) {
		t.Fatalf("expected bad credentials for unknown email, got %v", err)
	}
	_, err = env.Engine.RegisterUser(env.Ctx, engine.RegisterUserInput{
		Name: "Dup", Email: "pat@test.local", Password: "secret-pw", Role: domain.RolePantryStaff,
	}, "tester")
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t)
	if _, err := env.Engine.SetPreparationStatus(env.Ctx, task.ID, domain.PrepPrepared, env.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("no events recorded")
	}
	if events[0].Type != "meal_task.preparation_status" {
		t.Fatalf("newest event = %q", events[0].Type)
	}
}
