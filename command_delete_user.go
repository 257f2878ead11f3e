package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type DeleteUserMessage struct {
	UserID ID
}

func (e DeleteUserMessage) Type() string { return "user.delete" }

// DeleteUserHandler closes an account. Dependents go first, in the order
// sessions, accounts, credentials, profile, verification requests, then
// the user row, inside one transaction.
type DeleteUserHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewDeleteUserHandler(repo RepositoryManager) *DeleteUserHandler {
	return &DeleteUserHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger(),
	}
}

func (h *DeleteUserHandler) WithActivitySink(sink ActivitySink) *DeleteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during user deletion")
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var deleted *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Sessions().DeleteByUserIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}
		if _, err := h.repo.Accounts().DeleteByUserIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}
		if _, err := h.repo.Credentials().DeleteByUserIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}
		if _, err := h.repo.Profiles().DeleteByUserIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}
		if _, err := h.repo.VerificationRequests().DeleteByUserIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}

		user, err := h.repo.Users().DeleteTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}
		deleted = user
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return NewDBError(err, "user deletion transaction")
	}

	h.logger.Info("user deleted", "user_id", deleted.ID.String())
	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		UserID:    deleted.ID.String(),
	})
	return nil
}
