package repo

import (
	"context"
	"database/sql"
	"strings"

	"trayline/internal/domain"
)

const userColumns = `id,name,email,password_hash,role,created_at`

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users(id,name,email,password_hash,role,created_at)
		VALUES (?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	return err
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
}

func (r Repo) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role=? ORDER BY name`, string(role))
}

func (r Repo) listUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserUpdate carries optional field changes. Nil fields are left alone.
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *domain.Role
}

func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, id string, upd UserUpdate) error {
	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, *upd.Email)
	}
	if upd.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, string(*upd.Role))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := "UPDATE users SET " + strings.Join(sets, ",") + " WHERE id=?"
	res, err := tx.ExecContext(ctx, query, args...)
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

func (r Repo) AddNotificationTx(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications(id,user_id,message,ts,is_read)
		VALUES (?,?,?,?,?)`,
		n.ID, n.UserID, n.Message, n.Timestamp, boolToInt(n.IsRead))
	return err
}

func (r Repo) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id,user_id,message,ts,is_read FROM notifications
		WHERE user_id=? ORDER BY ts DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var isRead int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Timestamp, &isRead); err != nil {
			return nil, err
		}
		n.IsRead = isRead != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips a single notification owned by the user.
func (r Repo) MarkNotificationRead(ctx context.Context, tx *sql.Tx, userID, notificationID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE notifications SET is_read=1 WHERE id=? AND user_id=?`,
		notificationID, userID)
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
