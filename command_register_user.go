package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the payload before any row is touched.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Username, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.Password, validation.Required),
		validation.Field(&e.Name, validation.Length(0, 255)),
	)
}

// RegisterUserHandler creates a user together with its credentials,
// credentials account and empty profile, all or nothing.
type RegisterUserHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger(),
	}
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))
	event.Username = strings.TrimSpace(event.Username)
	event.Name = strings.TrimSpace(event.Name)

	if err := event.Validate(); err != nil {
		return nil, NewValidationError(err, "invalid signup payload")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{
		ID:    NewID(),
		Email: strPtr(event.Email),
		Name:  strPtr(event.Name),
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().InsertTx(ctx, tx, user); err != nil {
			return err
		}

		creds := &Credentials{
			ID:           NewID(),
			UserID:       user.ID,
			Username:     event.Username,
			PasswordHash: hash,
		}
		if _, err := h.repo.Credentials().InsertTx(ctx, tx, creds); err != nil {
			return err
		}

		account := &Account{
			ID:                NewID(),
			UserID:            user.ID,
			ProviderType:      ProviderTypeCredentials,
			ProviderID:        ProviderLocal,
			ProviderAccountID: creds.ID.String(),
		}
		if _, err := h.repo.Accounts().InsertTx(ctx, tx, account); err != nil {
			return err
		}

		profile := &Profile{
			ID:     NewID(),
			UserID: user.ID,
			Role:   DefaultRole,
		}
		if _, err := h.repo.Profiles().InsertTx(ctx, tx, profile); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return nil, withSource(ErrUserExists, err, map[string]any{"username": event.Username})
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, NewDBError(err, "user registration transaction")
	}

	h.logger.Info("user registered", "user_id", user.ID.String())
	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		UserID:    user.ID.String(),
	})

	return user, nil
}
