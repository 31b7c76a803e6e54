package account

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type RedeemKeyMessage struct {
	Key        string         `json:"key" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Redeemable key id"`
	Actor      string         `json:"actor" example:"8d2ff0f1-2c6a-4a32-a361-a2a385bd0c1c" doc:"Acting user id, optional"`
	Payload    map[string]any `json:"payload" doc:"Entity specific redemption parameters"`
	OnResponse func(r *RedeemKeyResponse)
}

func (e RedeemKeyMessage) Type() string { return "account.key.redeem" }

func (e RedeemKeyMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Key, validation.Required, is.UUID),
		validation.Field(&e.Actor, is.UUID),
	)
}

type RedeemKeyResponse struct {
	Found           bool     `json:"found" example:"true" doc:"Has the key been found?"`
	Redeemed        bool     `json:"redeemed" example:"true" doc:"Did the redemption succeed?"`
	Expired         bool     `json:"expired" example:"false" doc:"Was the key expired?"`
	AlreadyRedeemed bool     `json:"already_redeemed" example:"false" doc:"Was the key redeemed before?"`
	Errors          []string `json:"errors" doc:"Error messages."`
}

// RedeemKeyHandler stages and executes a redemption on behalf of an acting
// user. State machine failures land in the response; only infrastructure
// failures surface as errors.
type RedeemKeyHandler struct {
	repo   RepositoryManager
	engine RedemptionEngine
	logger Logger
}

func NewRedeemKeyHandler(repo RepositoryManager, opts ...RedemptionOption) *RedeemKeyHandler {
	return &RedeemKeyHandler{
		repo:   repo,
		engine: NewRedemptionEngine(repo, opts...),
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RedeemKeyHandler) WithLogger(logger Logger) *RedeemKeyHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RedeemKeyHandler) Execute(ctx context.Context, event RedeemKeyMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during key redemption")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RedeemKeyHandler) execute(ctx context.Context, event RedeemKeyMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid redemption payload")
	}

	resp := &RedeemKeyResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	key, err := h.repo.RedeemableKeys().GetByID(ctx, event.Key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			resp.Found = false
			h.respond(event, resp)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve redeemable key")
	}

	resp.Found = true

	var actor *User
	if event.Actor != "" {
		actor, err = h.repo.Users().GetByID(ctx, event.Actor)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				resp.Errors = append(resp.Errors, "acting user not found")
				h.respond(event, resp)
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve acting user")
		}
	}

	h.engine.Stage(key, actor, event.Payload)

	redeemed, err := h.engine.Redeem(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyExpired):
			resp.Expired = true
		case errors.Is(err, ErrKeyAlreadyRedeemed):
			resp.AlreadyRedeemed = true
		case IsStateConflict(err), IsValidation(err):
			resp.Errors = append(resp.Errors, err.Error())
		default:
			return err
		}

		h.respond(event, resp)
		return nil
	}

	resp.Redeemed = redeemed
	h.respond(event, resp)
	return nil
}

func (h *RedeemKeyHandler) respond(event RedeemKeyMessage, resp *RedeemKeyResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
