package gateway

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Users is the local user store.
type Users interface {
	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	SetEnabled(ctx context.Context, email string, enabled bool) (*User, error)
	SetRole(ctx context.Context, email string, role Role) (*User, error)
	Delete(ctx context.Context, id int64) error
}

type users struct {
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a bun backed Users store.
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db, now: time.Now}
}

func (u *users) Register(ctx context.Context, user *User) (*User, error) {
	return u.RegisterTx(ctx, u.db, user)
}

// RegisterTx inserts the user. A unique violation on email surfaces as
// ErrDuplicateIdentity; the email is re-checked after a failed insert so the
// mapping does not depend on driver error text.
func (u *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, ErrMissingRequiredField.Clone()
	}

	if _, err := u.GetByEmailTx(ctx, tx, user.Email); err == nil {
		return nil, withDetail(ErrDuplicateIdentity, map[string]any{"email": user.Email})
	} else if !isNotFound(err) {
		return nil, err
	}

	now := u.now()
	user.CreatedAt = &now
	user.UpdatedAt = &now
	user.Role = roleOrDefault(user.Role)

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		if _, lookupErr := u.GetByEmailTx(ctx, tx, user.Email); lookupErr == nil {
			return nil, withCause(ErrDuplicateIdentity, err, map[string]any{"email": user.Email})
		}
		return nil, err
	}

	return user, nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return u.GetByEmailTx(ctx, u.db, email)
}

func (u *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"email": email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (u *users) GetByID(ctx context.Context, id int64) (*User, error) {
	record := &User{}
	err := u.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"id": id,
			})
		}
		return nil, err
	}
	return record, nil
}

// SetEnabled flips the enabled flag with a single-row update.
func (u *users) SetEnabled(ctx context.Context, email string, enabled bool) (*User, error) {
	return u.updateByEmail(ctx, email, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("enabled = ?", enabled)
	})
}

// SetRole replaces the user's role with a single-row update.
func (u *users) SetRole(ctx context.Context, email string, role Role) (*User, error) {
	return u.updateByEmail(ctx, email, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("user_role = ?", role)
	})
}

// Delete removes the row outright. Only registration rollback calls it.
func (u *users) Delete(ctx context.Context, id int64) error {
	res, err := u.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			"id": id,
		})
	}
	return nil
}

func (u *users) updateByEmail(ctx context.Context, email string, set func(*bun.UpdateQuery) *bun.UpdateQuery) (*User, error) {
	q := u.db.NewUpdate().
		Model((*User)(nil)).
		Set("updated_at = ?", u.now()).
		Where("email = ?", email)

	res, err := set(q).Exec(ctx)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
			"email": email,
		})
	}

	return u.GetByEmail(ctx, email)
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}
