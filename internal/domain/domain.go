package domain

// Role tags what an actor is allowed to do. Dashboards and the engine
// dispatch on it instead of comparing raw strings everywhere.
type Role string

const (
	RoleAdmin             Role = "admin"
	RolePantryStaff       Role = "pantry_staff"
	RoleDeliveryPersonnel Role = "delivery_personnel"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePantryStaff, RoleDeliveryPersonnel:
		return true
	}
	return false
}

// Preparation status axis.
const (
	PrepPending    = "pending"
	PrepInProgress = "in_progress"
	PrepPrepared   = "prepared"
)

// Delivery status axis.
const (
	DeliveryPending = "pending"
	DeliveryOut     = "out_for_delivery"
	DeliveryDone    = "delivered"
)

// Meal slots.
const (
	MealMorning = "morning"
	MealEvening = "evening"
	MealNight   = "night"
)

type Patient struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Age              int      `json:"age"`
	Gender           string   `json:"gender"`
	Diseases         []string `json:"diseases,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	RoomNumber       string   `json:"room_number"`
	BedNumber        string   `json:"bed_number"`
	FloorNumber      string   `json:"floor_number"`
	ContactInfo      string   `json:"contact_info,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
	UpdatedAt        string   `json:"updated_at" format:"date-time"`
}

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role" enum:"admin,pantry_staff,delivery_personnel"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp" format:"date-time"`
	IsRead    bool   `json:"is_read"`
}

// Meal is one slot of a food chart.
type Meal struct {
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
}

// FoodChart holds the three daily meals for a patient. At most one chart
// exists per patient.
type FoodChart struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Morning   Meal   `json:"morning_meal"`
	Evening   Meal   `json:"evening_meal"`
	Night     Meal   `json:"night_meal"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// MealTask is the unit of work linking a patient, a meal slot, pantry
// staff, and delivery personnel. The two status axes move independently:
// pantry preparation and courier delivery are performed by different
// actors on different schedules.
type MealTask struct {
	ID                  string  `json:"id"`
	PatientID           string  `json:"patient_id"`
	FoodChartID         *string `json:"food_chart_id,omitempty"`
	MealType            string  `json:"meal_type" enum:"morning,evening,night"`
	AssignedTo          string  `json:"assigned_to"`
	PreparationStatus   string  `json:"preparation_status" enum:"pending,in_progress,prepared"`
	DeliveryStatus      string  `json:"delivery_status" enum:"pending,out_for_delivery,delivered"`
	DeliveryPersonnelID *string `json:"delivery_personnel_id,omitempty"`
	DeliveryTimestamp   *string `json:"delivery_timestamp,omitempty" format:"date-time"`
	DeliveryNotes       *string `json:"delivery_notes,omitempty"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	UpdatedAt           string  `json:"updated_at" format:"date-time"`
}

// Terminal reports whether the task has reached its final state on both axes.
func (t MealTask) Terminal() bool {
	return t.PreparationStatus == PrepPrepared && t.DeliveryStatus == DeliveryDone
}

// Alert kinds.
const (
	AlertPantry   = "pantry"
	AlertDelivery = "delivery"
)

// Alert is a derived record, recomputed on every scan and never persisted.
// PatientName and AssignedName are best-effort denormalizations; a dangling
// reference leaves a placeholder rather than failing the scan.
type Alert struct {
	TaskID         string `json:"task_id"`
	Kind           string `json:"kind" enum:"pantry,delivery"`
	PatientName    string `json:"patient_name"`
	AssignedName   string `json:"assigned_name"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// Event is one audit log row.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
