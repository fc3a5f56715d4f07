package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"trayline/internal/domain"
	"trayline/internal/events"
	"trayline/internal/repo"
)

type CreatePatientInput struct {
	Name             string
	Age              int
	Gender           string
	Diseases         []string
	Allergies        []string
	RoomNumber       string
	BedNumber        string
	FloorNumber      string
	ContactInfo      string
	EmergencyContact string
}

func (e *Engine) CreatePatient(ctx context.Context, in CreatePatientInput, actorID string) (domain.Patient, error) {
	if in.Name == "" {
		return domain.Patient{}, fmt.Errorf("name is required")
	}
	if in.Age <= 0 {
		return domain.Patient{}, fmt.Errorf("invalid age %d", in.Age)
	}
	if in.RoomNumber == "" || in.BedNumber == "" || in.FloorNumber == "" {
		return domain.Patient{}, fmt.Errorf("room, bed and floor numbers are required")
	}
	ts := e.timestamp()
	p := domain.Patient{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Age:              in.Age,
		Gender:           in.Gender,
		Diseases:         in.Diseases,
		Allergies:        in.Allergies,
		RoomNumber:       in.RoomNumber,
		BedNumber:        in.BedNumber,
		FloorNumber:      in.FloorNumber,
		ContactInfo:      in.ContactInfo,
		EmergencyContact: in.EmergencyContact,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Patient{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPatient(ctx, tx, p); err != nil {
		return domain.Patient{}, err
	}
	if err := e.appendEvent(ctx, tx, "patient.created", "patient", p.ID, actorID, events.EventPayload{
		"name": p.Name,
		"room": p.RoomNumber,
	}); err != nil {
		return domain.Patient{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

func (e *Engine) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	return e.Repo.GetPatient(ctx, id)
}

func (e *Engine) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return e.Repo.ListPatients(ctx)
}

func (e *Engine) UpdatePatient(ctx context.Context, id string, upd repo.PatientUpdate, actorID string) (domain.Patient, error) {
	if upd.Age != nil && *upd.Age <= 0 {
		return domain.Patient{}, fmt.Errorf("invalid age %d", *upd.Age)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Patient{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdatePatient(ctx, tx, id, upd, e.timestamp()); err != nil {
		return domain.Patient{}, err
	}
	if err := e.appendEvent(ctx, tx, "patient.updated", "patient", id, actorID, nil); err != nil {
		return domain.Patient{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Patient{}, err
	}
	return e.Repo.GetPatient(ctx, id)
}

func (e *Engine) DeletePatient(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeletePatient(ctx, tx, id); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, "patient.deleted", "patient", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

func (e *Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

// ListDeliveryPersonnel returns every user holding the delivery role.
func (e *Engine) ListDeliveryPersonnel(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsersByRole(ctx, domain.RoleDeliveryPersonnel)
}

// ListPantryStaff returns every user holding the pantry role.
func (e *Engine) ListPantryStaff(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsersByRole(ctx, domain.RolePantryStaff)
}

func (e *Engine) UpdateUser(ctx context.Context, id string, upd repo.UserUpdate, actorID string) (domain.User, error) {
	if upd.Role != nil && !upd.Role.Valid() {
		return domain.User{}, fmt.Errorf("invalid role %q", *upd.Role)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUser(ctx, tx, id, upd); err != nil {
		return domain.User{}, err
	}
	if err := e.appendEvent(ctx, tx, "user.updated", "user", id, actorID, nil); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, id)
}

// NotifyUser appends a message to the target user's inbox.
func (e *Engine) NotifyUser(ctx context.Context, userID, message, actorID string) (domain.Notification, error) {
	if message == "" {
		return domain.Notification{}, fmt.Errorf("message is required")
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Timestamp: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Notification{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AddNotificationTx(ctx, tx, n); err != nil {
		return domain.Notification{}, err
	}
	if err := e.appendEvent(ctx, tx, "notification.sent", "user", userID, actorID, events.EventPayload{
		"notification_id": n.ID,
	}); err != nil {
		return domain.Notification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (e *Engine) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.Repo.ListNotifications(ctx, userID)
}

func (e *Engine) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkNotificationRead(ctx, tx, userID, notificationID); err != nil {
		return err
	}
	return tx.Commit()
}
