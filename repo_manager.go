package account

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the registered entity
// kinds, and is the single place polymorphic slots are resolved into full
// records.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	EmailAddresses() EmailAddresses
	Passwords() Passwords
	RedeemableKeys() RedeemableKeys
	Registry() *Registry

	ResolveSlot(ctx context.Context, tx bun.IDB, slot Slot) (Entity, error)
}

type mngr struct {
	db       *bun.DB
	registry *Registry
	users    Users
	emails   EmailAddresses
	pwds     Passwords
	keys     RedeemableKeys
}

type ManagerOption func(*mngr)

// WithManagerRegistry overrides the registry; defaults to DefaultRegistry.
func WithManagerRegistry(registry *Registry) ManagerOption {
	return func(m *mngr) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithManagerPasswordsOptions forwards options to the passwords repository.
func WithManagerPasswordsOptions(opts ...PasswordsOption) ManagerOption {
	return func(m *mngr) {
		m.pwds = NewPasswordsRepository(m.db, opts...)
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:       db,
		registry: DefaultRegistry(),
		users:    NewUsersRepository(db),
		emails:   NewEmailAddressesRepository(db),
		pwds:     NewPasswordsRepository(db),
		keys:     NewRedeemableKeysRepository(db),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m *mngr) Validate() error {
	if m.registry == nil {
		return errors.New("entity registry should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.emails == nil {
		return errors.New("repository emailAddresses should be initialized")
	}

	if m.pwds == nil {
		return errors.New("repository passwords should be initialized")
	}

	if m.keys == nil {
		return errors.New("repository redeemableKeys should be initialized")
	}

	return nil
}

func (m *mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *mngr) Users() Users {
	return m.users
}

func (m *mngr) EmailAddresses() EmailAddresses {
	return m.emails
}

func (m *mngr) Passwords() Passwords {
	return m.pwds
}

func (m *mngr) RedeemableKeys() RedeemableKeys {
	return m.keys
}

func (m *mngr) Registry() *Registry {
	return m.registry
}

// ResolveSlot fetches the record a populated slot points at. The switch is
// the closed dispatch point over registered kinds; an unregistered kind is a
// configuration fault surfaced as ErrUnknownKind.
func (m *mngr) ResolveSlot(ctx context.Context, tx bun.IDB, slot Slot) (Entity, error) {
	if slot.IsZero() {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"reason": "empty slot",
			})
	}

	if !m.registry.Contains(slot.Kind) {
		return nil, withMeta(ErrUnknownKind, map[string]any{
			"kind": string(slot.Kind),
		})
	}

	switch slot.Kind {
	case KindUser:
		record := &User{}
		return record, m.scanByID(ctx, tx, record, slot)
	case KindEmailAddress:
		record := &EmailAddress{}
		return record, m.scanByID(ctx, tx, record, slot)
	case KindPassword:
		record := &Password{}
		return record, m.scanByID(ctx, tx, record, slot)
	case KindRedeemableKey:
		record := &RedeemableKey{}
		return record, m.scanByID(ctx, tx, record, slot)
	default:
		return nil, withMeta(ErrUnknownKind, map[string]any{
			"kind": string(slot.Kind),
		})
	}
}

// scanByID reads through the supplied transaction so engine validation sees
// rows the surrounding transaction wrote.
func (m *mngr) scanByID(ctx context.Context, tx bun.IDB, model any, slot Slot) error {
	if tx == nil {
		tx = m.db
	}

	err := tx.NewSelect().
		Model(model).
		Where("?TableAlias.id = ?", slot.ID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"kind": string(slot.Kind),
					"id":   slot.ID.String(),
				})
		}
		return err
	}

	return nil
}
