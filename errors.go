package account

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	textCodeDuplicateEmail        = "DUPLICATE_EMAIL_ADDRESS"
	textCodeCannotDeletePrimary   = "CANNOT_DELETE_PRIMARY_EMAIL"
	textCodeCannotDeleteOnly      = "CANNOT_DELETE_ONLY_EMAIL"
	textCodeKeyExpired            = "REDEEMABLE_KEY_EXPIRED"
	textCodeKeyAlreadyRedeemed    = "REDEEMABLE_KEY_ALREADY_REDEEMED"
	textCodeRedeemerMismatch      = "REDEEMER_MISMATCH"
	textCodeRedemptionRejected    = "REDEMPTION_REJECTED"
	textCodeRedemptionNotStaged   = "REDEMPTION_NOT_STAGED"
	textCodePasswordAlreadyHashed = "PASSWORD_ALREADY_HASHED"
	textCodePasswordPolicy        = "PASSWORD_POLICY_VIOLATION"
	textCodeSlotEmpty             = "POLYMORPHIC_SLOT_EMPTY"
	textCodeSlotConflict          = "POLYMORPHIC_SLOT_CONFLICT"
	textCodeUnknownKind           = "UNKNOWN_ENTITY_KIND"
	textCodeDuplicateKind         = "DUPLICATE_ENTITY_KIND"
)

// ErrDuplicateEmail is returned when the normalized email already exists store-wide.
var ErrDuplicateEmail = goerrors.New("email address already in use", goerrors.CategoryValidation).
	WithTextCode(textCodeDuplicateEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrCannotDeletePrimary is returned when deleting the primary email address.
var ErrCannotDeletePrimary = goerrors.New("cannot delete primary email address", goerrors.CategoryConflict).
	WithTextCode(textCodeCannotDeletePrimary).
	WithCode(goerrors.CodeConflict)

// ErrCannotDeleteOnlyAddress is returned when deleting an owner's sole email address.
var ErrCannotDeleteOnlyAddress = goerrors.New("cannot delete only email address", goerrors.CategoryConflict).
	WithTextCode(textCodeCannotDeleteOnly).
	WithCode(goerrors.CodeConflict)

// ErrKeyExpired is returned when redeeming past the key's expiration.
var ErrKeyExpired = goerrors.New("redeemable key has expired", goerrors.CategoryConflict).
	WithTextCode(textCodeKeyExpired).
	WithCode(goerrors.CodeConflict)

// ErrKeyAlreadyRedeemed is returned when a key was already redeemed. Redemption
// is terminal, this error is never retryable.
var ErrKeyAlreadyRedeemed = goerrors.New("redeemable key has already been redeemed", goerrors.CategoryConflict).
	WithTextCode(textCodeKeyAlreadyRedeemed).
	WithCode(goerrors.CodeConflict)

// ErrRedeemerMismatch is returned when the key requires a specific redeemer and
// the staged actor is someone else.
var ErrRedeemerMismatch = goerrors.New("actor does not match required redeemer", goerrors.CategoryConflict).
	WithTextCode(textCodeRedeemerMismatch).
	WithCode(goerrors.CodeConflict)

// ErrRedemptionRejected is returned when the addressed entity rejects the
// staged redemption in its own precondition check.
var ErrRedemptionRejected = goerrors.New("entity rejected redemption", goerrors.CategoryValidation).
	WithTextCode(textCodeRedemptionRejected).
	WithCode(goerrors.CodeBadRequest)

// ErrRedemptionNotStaged is returned when Validate or Redeem run without a
// prior Stage call. Staged data is transient and must be supplied per attempt.
var ErrRedemptionNotStaged = goerrors.New("redemption has not been staged", goerrors.CategoryOperation).
	WithTextCode(textCodeRedemptionNotStaged).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordAlreadyHashed is returned when a raw password looks like it has
// already been hashed, which would otherwise double-hash it.
var ErrPasswordAlreadyHashed = goerrors.New("raw password appears to be hashed", goerrors.CategoryValidation).
	WithTextCode(textCodePasswordAlreadyHashed).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordPolicy is returned when the configured password policy rejects
// the raw password.
var ErrPasswordPolicy = goerrors.New("password rejected by policy", goerrors.CategoryValidation).
	WithTextCode(textCodePasswordPolicy).
	WithCode(goerrors.CodeBadRequest)

// ErrSlotEmpty is returned when a non nullable polymorphic slot has no value.
// This is a programming fault, not a user facing validation failure.
var ErrSlotEmpty = goerrors.New("polymorphic slot cannot be empty", goerrors.CategoryInternal).
	WithTextCode(textCodeSlotEmpty)

// ErrSlotConflict is returned when a polymorphic slot has a kind without an id
// or an id without a kind. Exactly zero or one (kind, id) pair may be populated.
var ErrSlotConflict = goerrors.New("polymorphic slot has conflicting values", goerrors.CategoryInternal).
	WithTextCode(textCodeSlotConflict)

// ErrUnknownKind is returned when a kind tag was never registered. Using an
// unregistered kind is a configuration fault and is not recoverable.
var ErrUnknownKind = goerrors.New("entity kind is not registered", goerrors.CategoryInternal).
	WithTextCode(textCodeUnknownKind)

// ErrDuplicateKind is returned when registering the same kind tag twice.
var ErrDuplicateKind = goerrors.New("entity kind already registered", goerrors.CategoryInternal).
	WithTextCode(textCodeDuplicateKind)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("cannot hash an empty string", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth)

// withMeta attaches per-call metadata to a copy of a shared sentinel.
// Sentinels are package level and long lived; writing into their metadata map
// in place races between concurrent failures and leaks one caller's context
// into another caller's error. The returned error unwraps to the sentinel, so
// errors.Is matching is unchanged, and hands the metadata-carrying copy to
// goerrors.As.
func withMeta(sentinel *goerrors.Error, metadata map[string]any) error {
	rich := *sentinel
	rich.Metadata = nil
	return &metadataError{
		rich:     rich.WithMetadata(metadata),
		sentinel: sentinel,
	}
}

type metadataError struct {
	rich     *goerrors.Error
	sentinel *goerrors.Error
}

func (e *metadataError) Error() string { return e.rich.Error() }

func (e *metadataError) Unwrap() error { return e.sentinel }

func (e *metadataError) As(target any) bool {
	if t, ok := target.(**goerrors.Error); ok {
		*t = e.rich
		return true
	}
	return false
}

// IsValidation reports whether err is a locally recoverable validation failure.
func IsValidation(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryValidation ||
			rich.Category == goerrors.CategoryBadInput
	}
	return false
}

// IsStateConflict reports whether err is a terminal state error such as
// an already redeemed key or a guarded delete.
func IsStateConflict(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryConflict
	}
	return false
}

// IsNotFound reports whether err means the addressed record does not exist,
// including a slot resolution that matched no row.
func IsNotFound(err error) bool {
	return repository.IsRecordNotFound(err)
}

// IsIntegrity reports whether err is a programming or configuration fault.
// These should not occur in correct code and must not be caught and continued.
func IsIntegrity(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryInternal
	}
	return false
}
