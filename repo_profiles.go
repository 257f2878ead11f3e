package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Profiles interface {
	Store[*Profile]

	GetByUserID(ctx context.Context, userID ID) (*Profile, error)
	UpdateTx(ctx context.Context, tx bun.IDB, profile *Profile, columns ...string) (*Profile, error)
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error)
}

type profiles struct {
	*bunStore[*Profile]
}

var _ Profiles = (*profiles)(nil)

func NewProfilesRepository(db *bun.DB) Profiles {
	return &profiles{newBunStore(db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID.UUID()
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = ID(id)
			}
		},
	})}
}

func (r *profiles) GetByUserID(ctx context.Context, userID ID) (*Profile, error) {
	return r.findOne(ctx, r.db, "get profile by user", "user_id = ?", userID)
}

// UpdateTx writes the given columns, or every column when none are named.
func (r *profiles) UpdateTx(ctx context.Context, tx bun.IDB, profile *Profile, columns ...string) (*Profile, error) {
	q := tx.NewUpdate().Model(profile).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "user_id", "created_at")
	}
	if _, err := q.Exec(ctx); err != nil {
		return nil, NewDBError(err, "update profile")
	}
	return profile, nil
}

func (r *profiles) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, tx, userID)
}
