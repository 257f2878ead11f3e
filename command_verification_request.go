package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultVerificationTTL is how long an email verification token stays
// usable.
const DefaultVerificationTTL = 24 * time.Hour

type VerificationRequestMessage struct {
	UserID     ID
	OnResponse func(req *VerificationRequest)
}

func (e VerificationRequestMessage) Type() string { return "user.verification.request" }

type VerificationRequestHandler struct {
	repo   RepositoryManager
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

func NewVerificationRequestHandler(repo RepositoryManager) *VerificationRequestHandler {
	return &VerificationRequestHandler{
		repo:   repo,
		ttl:    DefaultVerificationTTL,
		logger: defLogger(),
		now:    time.Now,
	}
}

func (h *VerificationRequestHandler) WithTTL(ttl time.Duration) *VerificationRequestHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

func (h *VerificationRequestHandler) WithLogger(logger Logger) *VerificationRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerificationRequestHandler) Execute(ctx context.Context, event VerificationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerificationRequestHandler) execute(ctx context.Context, event VerificationRequestMessage) error {
	user, err := h.repo.Users().Get(ctx, event.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	if user.Email == nil {
		return goerrors.New("user has no email to verify", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	token, err := randomToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	req := &VerificationRequest{
		ID:         NewID(),
		UserID:     user.ID,
		Identifier: *user.Email,
		Token:      token,
		Expires:    h.now().UTC().Add(h.ttl),
	}

	if _, err := h.repo.VerificationRequests().Insert(ctx, req); err != nil {
		return err
	}

	h.logger.Debug("verification request created", "user_id", user.ID.String())

	if event.OnResponse != nil {
		event.OnResponse(req)
	}
	return nil
}

type VerifyEmailMessage struct {
	Token string
}

func (e VerifyEmailMessage) Type() string { return "user.verification.consume" }

// VerifyEmailHandler consumes a verification token. Expired requests are
// reaped, valid ones mark the user's email as verified.
type VerifyEmailHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger(),
		now:      time.Now,
	}
}

func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if event.Token == "" {
		return ErrMissingParam
	}

	req, err := h.repo.VerificationRequests().GetByToken(ctx, event.Token)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNotFound
	}

	now := h.now().UTC()
	if req.ExpiredAt(now) {
		if _, err := h.repo.VerificationRequests().Delete(ctx, req.ID); err != nil {
			return err
		}
		return ErrVerificationExpired
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Users().MarkEmailVerifiedTx(ctx, tx, req.UserID, now); err != nil {
			return err
		}
		_, err := h.repo.VerificationRequests().DeleteTx(ctx, tx, req.ID)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return NewDBError(err, "email verification transaction")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		UserID:    req.UserID.String(),
	})
	return nil
}
