package server

import (
	"trayline/internal/domain"
)

// Request payloads

type CreateMealTaskRequest struct {
	PatientID   string  `json:"patientId"`
	MealType    string  `json:"mealType" enum:"morning,evening,night"`
	AssignedTo  string  `json:"assignedTo"`
	FoodChartID *string `json:"foodChartId,omitempty"`
}

type SetPreparationStatusRequest struct {
	PreparationStatus string `json:"preparationStatus" enum:"pending,in_progress,prepared"`
}

type AssignDeliveryPersonnelRequest struct {
	DeliveryPersonnelID string `json:"deliveryPersonnelId"`
}

type MarkDeliveredRequest struct {
	DeliveryNotes *string `json:"deliveryNotes,omitempty"`
}

type CreatePatientRequest struct {
	Name             string   `json:"name"`
	Age              int      `json:"age"`
	Gender           string   `json:"gender"`
	Diseases         []string `json:"diseases,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	RoomNumber       string   `json:"roomNumber"`
	BedNumber        string   `json:"bedNumber"`
	FloorNumber      string   `json:"floorNumber"`
	ContactInfo      string   `json:"contactInfo,omitempty"`
	EmergencyContact string   `json:"emergencyContact,omitempty"`
}

type UpdatePatientRequest struct {
	Name             *string  `json:"name,omitempty"`
	Age              *int     `json:"age,omitempty"`
	Gender           *string  `json:"gender,omitempty"`
	Diseases         []string `json:"diseases,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	RoomNumber       *string  `json:"roomNumber,omitempty"`
	BedNumber        *string  `json:"bedNumber,omitempty"`
	FloorNumber      *string  `json:"floorNumber,omitempty"`
	ContactInfo      *string  `json:"contactInfo,omitempty"`
	EmergencyContact *string  `json:"emergencyContact,omitempty"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty" enum:"admin,pantry_staff,delivery_personnel"`
}

type MealRequest struct {
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions,omitempty"`
}

type CreateFoodChartRequest struct {
	PatientID string      `json:"patientId"`
	Morning   MealRequest `json:"morningMeal"`
	Evening   MealRequest `json:"eveningMeal"`
	Night     MealRequest `json:"nightMeal"`
}

type UpdateFoodChartRequest struct {
	Morning MealRequest `json:"morningMeal"`
	Evening MealRequest `json:"eveningMeal"`
	Night   MealRequest `json:"nightMeal"`
}

type NotifyRequest struct {
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role" enum:"admin,pantry_staff,delivery_personnel"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response payloads

type MealTaskResponse struct {
	ID                  string  `json:"id"`
	PatientID           string  `json:"patientId"`
	FoodChartID         *string `json:"foodChartId,omitempty"`
	MealType            string  `json:"mealType" enum:"morning,evening,night"`
	AssignedTo          string  `json:"assignedTo"`
	PreparationStatus   string  `json:"preparationStatus" enum:"pending,in_progress,prepared"`
	DeliveryStatus      string  `json:"deliveryStatus" enum:"pending,out_for_delivery,delivered"`
	DeliveryPersonnelID *string `json:"deliveryPersonnelId,omitempty"`
	DeliveryTimestamp   *string `json:"deliveryTimestamp,omitempty" format:"date-time"`
	DeliveryNotes       *string `json:"deliveryNotes,omitempty"`
	CreatedAt           string  `json:"createdAt" format:"date-time"`
	UpdatedAt           string  `json:"updatedAt" format:"date-time"`
}

type PatientResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Age              int      `json:"age"`
	Gender           string   `json:"gender"`
	Diseases         []string `json:"diseases,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	RoomNumber       string   `json:"roomNumber"`
	BedNumber        string   `json:"bedNumber"`
	FloorNumber      string   `json:"floorNumber"`
	ContactInfo      string   `json:"contactInfo,omitempty"`
	EmergencyContact string   `json:"emergencyContact,omitempty"`
	CreatedAt        string   `json:"createdAt" format:"date-time"`
	UpdatedAt        string   `json:"updatedAt" format:"date-time"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,pantry_staff,delivery_personnel"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type NotificationResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp" format:"date-time"`
	IsRead    bool   `json:"isRead"`
}

type MealResponse struct {
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions,omitempty"`
}

type FoodChartResponse struct {
	ID        string       `json:"id"`
	PatientID string       `json:"patientId"`
	Morning   MealResponse `json:"morningMeal"`
	Evening   MealResponse `json:"eveningMeal"`
	Night     MealResponse `json:"nightMeal"`
	CreatedAt string       `json:"createdAt" format:"date-time"`
	UpdatedAt string       `json:"updatedAt" format:"date-time"`
}

type AlertResponse struct {
	TaskID         string `json:"taskId"`
	Kind           string `json:"kind" enum:"pantry,delivery"`
	PatientName    string `json:"patientName"`
	AssignedName   string `json:"assignedName"`
	ElapsedMinutes int    `json:"elapsedMinutes"`
	CreatedAt      string `json:"createdAt" format:"date-time"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payload"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Converters

func mealTaskResponse(t domain.MealTask) MealTaskResponse {
	return MealTaskResponse{
		ID:                  t.ID,
		PatientID:           t.PatientID,
		FoodChartID:         t.FoodChartID,
		MealType:            t.MealType,
		AssignedTo:          t.AssignedTo,
		PreparationStatus:   t.PreparationStatus,
		DeliveryStatus:      t.DeliveryStatus,
		DeliveryPersonnelID: t.DeliveryPersonnelID,
		DeliveryTimestamp:   t.DeliveryTimestamp,
		DeliveryNotes:       t.DeliveryNotes,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func mapMealTasks(tasks []domain.MealTask) []MealTaskResponse {
	out := make([]MealTaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, mealTaskResponse(t))
	}
	return out
}

func patientResponse(p domain.Patient) PatientResponse {
	return PatientResponse{
		ID:               p.ID,
		Name:             p.Name,
		Age:              p.Age,
		Gender:           p.Gender,
		Diseases:         p.Diseases,
		Allergies:        p.Allergies,
		RoomNumber:       p.RoomNumber,
		BedNumber:        p.BedNumber,
		FloorNumber:      p.FloorNumber,
		ContactInfo:      p.ContactInfo,
		EmergencyContact: p.EmergencyContact,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func mapPatients(patients []domain.Patient) []PatientResponse {
	out := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientResponse(p))
	}
	return out
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func mapUsers(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Timestamp: n.Timestamp,
		IsRead:    n.IsRead,
	}
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse(n))
	}
	return out
}

func mealResponse(m domain.Meal) MealResponse {
	return MealResponse{Ingredients: m.Ingredients, Instructions: m.Instructions}
}

func mealFromRequest(m MealRequest) domain.Meal {
	return domain.Meal{Ingredients: m.Ingredients, Instructions: m.Instructions}
}

func foodChartResponse(c domain.FoodChart) FoodChartResponse {
	return FoodChartResponse{
		ID:        c.ID,
		PatientID: c.PatientID,
		Morning:   mealResponse(c.Morning),
		Evening:   mealResponse(c.Evening),
		Night:     mealResponse(c.Night),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func mapFoodCharts(charts []domain.FoodChart) []FoodChartResponse {
	out := make([]FoodChartResponse, 0, len(charts))
	for _, c := range charts {
		out = append(out, foodChartResponse(c))
	}
	return out
}

func alertResponse(a domain.Alert) AlertResponse {
	return AlertResponse{
		TaskID:         a.TaskID,
		Kind:           a.Kind,
		PatientName:    a.PatientName,
		AssignedName:   a.AssignedName,
		ElapsedMinutes: a.ElapsedMinutes,
		CreatedAt:      a.CreatedAt,
	}
}

func mapAlerts(items []domain.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(items))
	for _, a := range items {
		out = append(out, alertResponse(a))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
