package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerificationRequests interface {
	Store[*VerificationRequest]

	GetByToken(ctx context.Context, token string) (*VerificationRequest, error)
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error)
}

type verificationRequests struct {
	*bunStore[*VerificationRequest]
}

var _ VerificationRequests = (*verificationRequests)(nil)

func NewVerificationRequestsRepository(db *bun.DB) VerificationRequests {
	return &verificationRequests{newBunStore(db, repository.ModelHandlers[*VerificationRequest]{
		NewRecord: func() *VerificationRequest { return &VerificationRequest{} },
		GetID: func(v *VerificationRequest) uuid.UUID {
			if v == nil {
				return uuid.Nil
			}
			return v.ID.UUID()
		},
		SetID: func(v *VerificationRequest, id uuid.UUID) {
			if v != nil {
				v.ID = ID(id)
			}
		},
	})}
}

func (r *verificationRequests) GetByToken(ctx context.Context, token string) (*VerificationRequest, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, r.db, "get verification request", "token = ?", token)
}

func (r *verificationRequests) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	return r.deleteByUserTx(ctx, tx, userID)
}
