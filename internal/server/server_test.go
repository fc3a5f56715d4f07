package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"trayline/internal/alerts"
	"trayline/internal/config"
	"trayline/internal/db"
	"trayline/internal/dietchart"
	"trayline/internal/domain"
	"trayline/internal/engine"
	"trayline/internal/migrate"
)

type testServer struct {
	URL     string
	Engine  *engine.Engine
	Patient domain.Patient
	Admin   domain.User
	Pantry  domain.User
	Courier domain.User
	client  *http.Client
	close   func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type staticGenerator struct{ text string }

func (g staticGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.text, nil
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test-facility"))
	// Backdate writes so derived alerts have elapsed time to work with.
	e.Now = func() time.Time { return time.Now().Add(-time.Hour).UTC() }
	ctx := context.Background()

	admin, err := e.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Alice Admin", Email: "alice@test.local", Password: "secret-pw", Role: domain.RoleAdmin,
	}, "bootstrap")
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	pantry, err := e.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Pat Pantry", Email: "pat@test.local", Password: "secret-pw", Role: domain.RolePantryStaff,
	}, admin.ID)
	if err != nil {
		t.Fatalf("register pantry: %v", err)
	}
	courier, err := e.RegisterUser(ctx, engine.RegisterUserInput{
		Name: "Cory Courier", Email: "cory@test.local", Password: "secret-pw", Role: domain.RoleDeliveryPersonnel,
	}, admin.ID)
	if err != nil {
		t.Fatalf("register courier: %v", err)
	}
	patient, err := e.CreatePatient(ctx, engine.CreatePatientInput{
		Name: "Ada Lovelace", Age: 36, Gender: "female",
		RoomNumber: "101", BedNumber: "B", FloorNumber: "1",
	}, admin.ID)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}

	det := alerts.New(e.Repo, alerts.Config{
		PantryThreshold:   15 * time.Minute,
		DeliveryThreshold: 30 * time.Minute,
	})
	var gen dietchart.Generator = staticGenerator{text: "Morning Meal\n- oats\nInstructions: warm"}
	handler, err := New(Config{
		Engine:    e,
		Alerts:    det,
		Generator: gen,
		BasePath:  "/v1",
		Auth:      AuthConfig{JWTSecret: "test-secret", AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:     "http://" + ln.Addr().String(),
		Engine:  e,
		Patient: patient,
		Admin:   admin,
		Pantry:  pantry,
		Courier: courier,
		client:  &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func TestMealTaskLifecycleHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/meal-tasks", map[string]any{
		"patientId":  srv.Patient.ID,
		"mealType":   "morning",
		"assignedTo": srv.Pantry.ID,
	}, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	var created MealTaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.PreparationStatus != "pending" || created.DeliveryStatus != "pending" {
		t.Fatalf("new task not pending/pending: %+v", created)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/meal-tasks/"+created.ID+"/status", map[string]any{
		"preparationStatus": "prepared",
	}, asActor(srv.Pantry.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/assign-delivery-personnel/"+created.ID, map[string]any{
		"deliveryPersonnelId": srv.Courier.ID,
	}, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign status %d: %s", res.StatusCode, data)
	}
	var assigned MealTaskResponse
	_ = json.Unmarshal(data, &assigned)
	if assigned.DeliveryStatus != "out_for_delivery" {
		t.Fatalf("delivery status = %q", assigned.DeliveryStatus)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/meal-tasks/"+created.ID+"/mark-as-delivered", map[string]any{
		"deliveryNotes": "handed to nurse",
	}, asActor(srv.Courier.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("deliver status %d: %s", res.StatusCode, data)
	}
	var delivered MealTaskResponse
	_ = json.Unmarshal(data, &delivered)
	if delivered.DeliveryStatus != "delivered" || delivered.DeliveryTimestamp == nil {
		t.Fatalf("delivered task incomplete: %+v", delivered)
	}
	if delivered.DeliveryNotes == nil || *delivered.DeliveryNotes != "handed to nurse" {
		t.Fatalf("notes lost: %+v", delivered.DeliveryNotes)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/assigned-meal-tasks/"+srv.Pantry.ID, nil, asActor(srv.Pantry.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assigned status %d: %s", res.StatusCode, data)
	}
	var assignedList []MealTaskResponse
	_ = json.Unmarshal(data, &assignedList)
	if len(assignedList) != 1 || assignedList[0].ID != created.ID {
		t.Fatalf("assigned list: %+v", assignedList)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/prepared-meal-tasks", nil, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("prepared status %d: %s", res.StatusCode, data)
	}
	var preparedList []MealTaskResponse
	_ = json.Unmarshal(data, &preparedList)
	if len(preparedList) != 1 {
		t.Fatalf("prepared list: %+v", preparedList)
	}
}

func TestCreateMealTaskErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing fields", map[string]any{"patientId": srv.Patient.ID}},
		{"bad meal type", map[string]any{"patientId": srv.Patient.ID, "mealType": "brunch", "assignedTo": srv.Pantry.ID}},
		{"unknown patient", map[string]any{"patientId": "nope", "mealType": "morning", "assignedTo": srv.Pantry.ID}},
		{"courier assignee", map[string]any{"patientId": srv.Patient.ID, "mealType": "morning", "assignedTo": srv.Courier.ID}},
	}
	for _, tc := range cases {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/meal-tasks", tc.body, asActor(srv.Admin.ID))
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d: %s", tc.name, res.StatusCode, data)
		}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "bad_request" {
			t.Errorf("%s: bad envelope: %s", tc.name, data)
		}
	}
}

func TestRoleEnforcement(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// couriers cannot create tasks
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/meal-tasks", map[string]any{
		"patientId": srv.Patient.ID, "mealType": "morning", "assignedTo": srv.Pantry.ID,
	}, asActor(srv.Courier.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("courier create status %d: %s", res.StatusCode, data)
	}

	// assigning a pantry user as courier is a bad request
	task, err := srv.Engine.CreateMealTask(context.Background(), engine.CreateMealTaskInput{
		PatientID: srv.Patient.ID, MealType: "morning", AssignedTo: srv.Pantry.ID,
	}, srv.Admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v1/assign-delivery-personnel/"+task.ID, map[string]any{
		"deliveryPersonnelId": srv.Pantry.ID,
	}, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("assign pantry status %d: %s", res.StatusCode, data)
	}
}

func TestMutationEndpointsUsePut(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	task, err := srv.Engine.CreateMealTask(context.Background(), engine.CreateMealTaskInput{
		PatientID: srv.Patient.ID, MealType: "night", AssignedTo: srv.Pantry.ID,
	}, srv.Admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, url := range []string{
		srv.URL + "/v1/meal-tasks/" + task.ID + "/status",
		srv.URL + "/v1/assign-delivery-personnel/" + task.ID,
		srv.URL + "/v1/meal-tasks/" + task.ID + "/mark-as-delivered",
	} {
		res, data := doJSON(t, client, http.MethodPost, url, map[string]any{}, asActor(srv.Admin.ID))
		if res.StatusCode != http.StatusMethodNotAllowed && res.StatusCode != http.StatusNotFound {
			t.Errorf("POST %s accepted: status %d: %s", url, res.StatusCode, data)
		}
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/meal-tasks/ghost", nil, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/meal-tasks-all", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestLoginAndBearer(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email": "pat@test.local", "password": "secret-pw",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var login LoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("login body: %s", data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/meal-tasks-all", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer list status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email": "pat@test.local", "password": "wrong",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d: %s", res.StatusCode, data)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// created an hour in the past, so the pantry threshold is well past
	task, err := srv.Engine.CreateMealTask(context.Background(), engine.CreateMealTaskInput{
		PatientID: srv.Patient.ID, MealType: "evening", AssignedTo: srv.Pantry.ID,
	}, srv.Admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/alerts", nil, asActor(srv.Pantry.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alerts status %d: %s", res.StatusCode, data)
	}
	var items []AlertResponse
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal alerts: %s", data)
	}
	if len(items) != 1 || items[0].Kind != "pantry" || items[0].TaskID != task.ID {
		t.Fatalf("alerts: %+v", items)
	}

	// delivering silences it
	if _, err := srv.Engine.SetPreparationStatus(context.Background(), task.ID, domain.PrepPrepared, srv.Pantry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.MarkDelivered(context.Background(), task.ID, nil, srv.Courier.ID); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/alerts", nil, asActor(srv.Pantry.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alerts status %d: %s", res.StatusCode, data)
	}
	items = nil
	_ = json.Unmarshal(data, &items)
	if len(items) != 0 {
		t.Fatalf("expected no alerts, got %+v", items)
	}
}

func TestFoodChartConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	body := map[string]any{
		"patientId":   srv.Patient.ID,
		"morningMeal": map[string]any{"ingredients": []string{"oats"}},
		"eveningMeal": map[string]any{"ingredients": []string{"rice"}},
		"nightMeal":   map[string]any{"ingredients": []string{"soup"}},
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/food-charts", body, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create chart status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/food-charts", body, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate chart status %d: %s", res.StatusCode, data)
	}
}

func TestGenerateDietChart(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/patients/"+srv.Patient.ID+"/generate-diet-chart", nil, asActor(srv.Admin.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", res.StatusCode, data)
	}
	var out struct {
		Draft   string       `json:"draft"`
		Morning MealResponse `json:"morningMeal"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %s", data)
	}
	if out.Draft == "" || len(out.Morning.Ingredients) != 1 || out.Morning.Ingredients[0] != "oats" {
		t.Fatalf("draft parse: %+v", out)
	}
}
