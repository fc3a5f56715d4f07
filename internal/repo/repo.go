package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trayline/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) Repo {
	return Repo{DB: db}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func parseJSONList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw.String), &items); err != nil {
		return nil
	}
	return items
}

func (r Repo) InsertPatient(ctx context.Context, tx *sql.Tx, p domain.Patient) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO patients(id,name,age,gender,diseases_json,allergies_json,room_number,bed_number,floor_number,contact_info,emergency_contact,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Age, p.Gender, jsonList(p.Diseases), jsonList(p.Allergies),
		p.RoomNumber, p.BedNumber, p.FloorNumber, nullable(p.ContactInfo), nullable(p.EmergencyContact),
		p.CreatedAt, p.UpdatedAt)
	return err
}

func scanPatient(row interface{ Scan(...any) error }) (domain.Patient, error) {
	var p domain.Patient
	var diseases, allergies, contact, emergency sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &diseases, &allergies,
		&p.RoomNumber, &p.BedNumber, &p.FloorNumber, &contact, &emergency,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Patient{}, err
	}
	p.Diseases = parseJSONList(diseases)
	p.Allergies = parseJSONList(allergies)
	p.ContactInfo = contact.String
	p.EmergencyContact = emergency.String
	return p, nil
}

const patientColumns = `id,name,age,gender,diseases_json,allergies_json,room_number,bed_number,floor_number,contact_info,emergency_contact,created_at,updated_at`

func (r Repo) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id=?`, id)
	p, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return domain.Patient{}, ErrNotFound
	}
	return p, err
}

func (r Repo) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var patients []domain.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// PatientUpdate carries optional field changes. Nil fields are left alone.
type PatientUpdate struct {
	Name             *string
	Age              *int
	Gender           *string
	Diseases         []string
	Allergies        []string
	RoomNumber       *string
	BedNumber        *string
	FloorNumber      *string
	ContactInfo      *string
	EmergencyContact *string
}

func (r Repo) UpdatePatient(ctx context.Context, tx *sql.Tx, id string, upd PatientUpdate, updatedAt string) error {
	sets := []string{"updated_at=?"}
	args := []any{updatedAt}
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Age != nil {
		sets = append(sets, "age=?")
		args = append(args, *upd.Age)
	}
	if upd.Gender != nil {
		sets = append(sets, "gender=?")
		args = append(args, *upd.Gender)
	}
	if upd.Diseases != nil {
		sets = append(sets, "diseases_json=?")
		args = append(args, jsonList(upd.Diseases))
	}
	if upd.Allergies != nil {
		sets = append(sets, "allergies_json=?")
		args = append(args, jsonList(upd.Allergies))
	}
	if upd.RoomNumber != nil {
		sets = append(sets, "room_number=?")
		args = append(args, *upd.RoomNumber)
	}
	if upd.BedNumber != nil {
		sets = append(sets, "bed_number=?")
		args = append(args, *upd.BedNumber)
	}
	if upd.FloorNumber != nil {
		sets = append(sets, "floor_number=?")
		args = append(args, *upd.FloorNumber)
	}
	if upd.ContactInfo != nil {
		sets = append(sets, "contact_info=?")
		args = append(args, nullable(*upd.ContactInfo))
	}
	if upd.EmergencyContact != nil {
		sets = append(sets, "emergency_contact=?")
		args = append(args, nullable(*upd.EmergencyContact))
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE patients SET %s WHERE id=?`, strings.Join(sets, ",")), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeletePatient(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
