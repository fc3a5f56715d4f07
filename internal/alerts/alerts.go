package alerts

import (
	"context"
	"time"

	"trayline/internal/domain"
	"trayline/internal/repo"
)

// Config carries the staleness windows. Zero values fall back to defaults.
type Config struct {
	PantryThreshold   time.Duration
	DeliveryThreshold time.Duration
}

const (
	DefaultPantryThreshold   = 15 * time.Minute
	DefaultDeliveryThreshold = 30 * time.Minute
)

func (c Config) pantry() time.Duration {
	if c.PantryThreshold > 0 {
		return c.PantryThreshold
	}
	return DefaultPantryThreshold
}

func (c Config) delivery() time.Duration {
	if c.DeliveryThreshold > 0 {
		return c.DeliveryThreshold
	}
	return DefaultDeliveryThreshold
}

// Detector recomputes alerts from live task state on every scan. Nothing
// is persisted; two scans over identical data produce identical output.
type Detector struct {
	Repo   repo.Repo
	Config Config
	Now    func() time.Time
}

func New(r repo.Repo, cfg Config) *Detector {
	return &Detector{Repo: r, Config: cfg, Now: time.Now}
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Scan walks every task and reports those stuck past their threshold.
// The two axes are checked independently: a pantry alert when preparation
// is not done, a delivery alert when a tray is out for delivery. A task
// late on both axes contributes two alerts. Tasks with unparseable
// timestamps are skipped rather than failing the whole scan.
func (d *Detector) Scan(ctx context.Context) ([]domain.Alert, error) {
	tasks, err := d.Repo.ListMealTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return nil, err
	}
	now := d.now()
	alerts := []domain.Alert{}
	for _, t := range tasks {
		created, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			continue
		}
		elapsed := now.Sub(created)
		if elapsed < 0 {
			continue
		}
		var kinds []string
		if t.PreparationStatus != domain.PrepPrepared && elapsed > d.Config.pantry() {
			kinds = append(kinds, domain.AlertPantry)
		}
		if t.DeliveryStatus == domain.DeliveryOut && elapsed > d.Config.delivery() {
			kinds = append(kinds, domain.AlertDelivery)
		}
		for _, kind := range kinds {
			alerts = append(alerts, domain.Alert{
				TaskID:         t.ID,
				Kind:           kind,
				PatientName:    d.patientName(ctx, t.PatientID),
				AssignedName:   d.assignedName(ctx, t, kind),
				ElapsedMinutes: int(elapsed / time.Minute),
				CreatedAt:      t.CreatedAt,
			})
		}
	}
	return alerts, nil
}

func (d *Detector) patientName(ctx context.Context, patientID string) string {
	p, err := d.Repo.GetPatient(ctx, patientID)
	if err != nil {
		return "(unknown patient)"
	}
	return p.Name
}

func (d *Detector) assignedName(ctx context.Context, t domain.MealTask, kind string) string {
	userID := t.AssignedTo
	if kind == domain.AlertDelivery && t.DeliveryPersonnelID != nil {
		userID = *t.DeliveryPersonnelID
	}
	u, err := d.Repo.GetUser(ctx, userID)
	if err != nil {
		return "(unassigned)"
	}
	return u.Name
}
