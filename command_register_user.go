package account

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Verified  bool   `json:"verified"`
	IsAdmin   bool   `json:"is_admin"`
	// RequireActivation registers the user as inactive and issues an
	// activation key targeting the account.
	RequireActivation bool `json:"require_activation"`
	UseHashid         bool
	OnResponse        func(r *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the payload before any storage work happens.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Length(10, 100)),
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
	)
}

type RegisterUserResponse struct {
	UserID          string `json:"user_id" doc:"Created user id"`
	EmailID         string `json:"email_id" doc:"Created primary email address id"`
	ActivationKeyID string `json:"activation_key_id,omitempty" doc:"Issued activation key id, when activation is required"`
}

// RegisterUserHandler creates a user, its primary email address, and
// optionally its password and activation key, all in one transaction. If any
// step fails nothing is persisted.
type RegisterUserHandler struct {
	repo     RepositoryManager
	activity ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		activity: noopActivitySink{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		user.IsActive = !event.RequireActivation
		user.IsAdmin = event.IsAdmin
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		var err error
		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}
		resp.UserID = user.ID.String()

		email, err := h.repo.EmailAddresses().CreateEmailTx(ctx, tx, user, event.Email, event.Verified)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create email address")
		}
		resp.EmailID = email.ID.String()

		if event.Password != "" {
			if _, err := h.repo.Passwords().SetPasswordTx(ctx, tx, user, event.Password); err != nil {
				return err
			}
		}

		if event.RequireActivation {
			key, err := h.repo.RedeemableKeys().CreateKeyTx(ctx, tx, user, user, nil)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue activation key")
			}
			resp.ActivationKeyID = key.ID.String()
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User) {
	err := normalizeActivitySink(h.activity).Record(ctx, ActivityEvent{
		EventType:  ActivityEventUserRegistered,
		Actor:      ActorRef{ID: user.ID.String(), Type: string(KindUser)},
		Subject:    MakeSlot(user),
		OccurredAt: time.Now(),
	})
	if err != nil {
		defLogger{}.Error("register user activity sink error: %v", err)
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
