package account

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerificationRequestMessage struct {
	Email      string `json:"email" example:"user@example.com" doc:"Address to verify"`
	TTL        string `json:"ttl" example:"24h" doc:"Optional key lifetime as a duration string"`
	OnResponse func(r *VerificationRequestResponse)
}

func (e VerificationRequestMessage) Type() string { return "account.verification.request" }

func (e VerificationRequestMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type VerificationRequestResponse struct {
	Found    bool     `json:"found" example:"true" doc:"Has the address been found?"`
	Verified bool     `json:"verified" example:"false" doc:"Is the address already verified?"`
	Reissued bool     `json:"reissued" example:"false" doc:"Was an outstanding key returned instead of a new one?"`
	KeyID    string   `json:"key_id" doc:"Issued redeemable key id"`
	Errors   []string `json:"errors" doc:"Error messages."`
}

// VerificationRequestHandler issues a redeemable key targeting an email
// address, pinned to the owning user as required redeemer. Requests arriving
// within the reissue threshold get the outstanding key back instead of a new
// one.
type VerificationRequestHandler struct {
	repo RepositoryManager
	// reissueThreshold is a duration expression; an unredeemed, unexpired
	// key created within it is reused.
	reissueThreshold string
}

func NewVerificationRequestHandler(repo RepositoryManager) *VerificationRequestHandler {
	return &VerificationRequestHandler{
		repo:             repo,
		reissueThreshold: "15m",
	}
}

// WithReissueThreshold overrides how long an outstanding key suppresses new
// issuance. Pass an empty string to always issue a fresh key.
func (h *VerificationRequestHandler) WithReissueThreshold(threshold string) *VerificationRequestHandler {
	h.reissueThreshold = threshold
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
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification request payload")
	}

	resp := &VerificationRequestResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		email, err := h.repo.EmailAddresses().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			// a missing address is part of the expected flow, not an
			// application error
			if repository.IsRecordNotFound(err) {
				resp.Found = false
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve email address")
		}

		resp.Found = true

		if email.IsVerified() {
			resp.Verified = true
			return nil
		}

		if outstanding := h.outstandingKey(ctx, email); outstanding != nil {
			resp.Reissued = true
			resp.KeyID = outstanding.ID.String()
			return nil
		}

		var redeemer *User
		if email.Owner.Kind == KindUser {
			record, err := h.repo.ResolveSlot(ctx, tx, email.Owner)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve address owner")
			}
			redeemer, _ = record.(*User)
		}

		expiresAt, err := expiryFromTTL(event.TTL)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid ttl")
		}

		key, err := h.repo.RedeemableKeys().CreateKeyTx(ctx, tx, email, redeemer, expiresAt)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue verification key")
		}

		resp.KeyID = key.ID.String()
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification request transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// outstandingKey returns a live key for the address created within the
// reissue threshold, if any.
func (h *VerificationRequestHandler) outstandingKey(ctx context.Context, email *EmailAddress) *RedeemableKey {
	if h.reissueThreshold == "" {
		return nil
	}

	keys, err := h.repo.RedeemableKeys().ListForRedeemable(ctx, email)
	if err != nil {
		return nil
	}

	now := nowUTC()
	for _, key := range keys {
		if key.IsRedeemed() || key.IsExpired(now) || key.CreatedAt == nil {
			continue
		}
		if recent, err := IsWithinThresholdPeriod(*key.CreatedAt, h.reissueThreshold); err == nil && recent {
			return key
		}
	}

	return nil
}

func expiryFromTTL(ttl string) (*time.Time, error) {
	if ttl == "" {
		return nil, nil
	}

	duration, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, err
	}

	expiry := nowUTC().Add(duration)
	return &expiry, nil
}
