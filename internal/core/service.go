package core

import (
	"context"
	"time"

	"themecore/internal/blob"
	"themecore/internal/infra/persistence/memory"
	"themecore/pkg/domain"
)

// Service exposes higher-level transactional operations for the domain
// schema: account and organization management, theme CRUD guarded by access
// resolution, snapshot generation, sharing and the purchase lifecycle.
type Service struct {
	store       PersistentStore
	blobs       blob.Store
	logger      Logger
	audit       AuditRecorder
	metrics     MetricsRecorder
	tracer      Tracer
	sharePolicy ShareListPolicy
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithAuditRecorder wires an audit recorder receiving one entry per operation.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) { s.audit = rec }
}

// WithMetricsRecorder wires a metrics recorder observing operation outcomes.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer wires a tracer spanning each operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithLogger wires a structured logger for operation events.
func WithLogger(logger Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithBlobStore wires a blob store used to archive rendered snapshots.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) { s.blobs = store }
}

// WithShareListPolicy overrides who may list a theme's share grants.
func WithShareListPolicy(policy ShareListPolicy) Option {
	return func(s *Service) { s.sharePolicy = policy }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      noopLogger{},
		sharePolicy: ShareListAnyGrantee,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// run wraps an operation with tracing, metrics, audit and logging. fn returns
// the primary entity ID for the audit trail.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := time.Now()
	entityID, err := fn(ctx)
	duration := time.Since(start)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if s.audit != nil {
		entry := AuditEntry{Operation: operation, Status: AuditStatusSuccess, EntityID: entityID, At: time.Now().UTC()}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
		return err
	}
	s.logger.Debug("operation committed", "operation", operation, "entity_id", entityID, "duration_ms", float64(duration)/float64(time.Millisecond))
	return nil
}

// CreateUser persists a new user account.
func (s *Service) CreateUser(ctx context.Context, user User) (User, Result, error) {
	var created User
	var res Result
	err := s.run(ctx, "create_user", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateUser(user)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateUser mutates a user account using the provided mutator.
func (s *Service) UpdateUser(ctx context.Context, id string, mutator func(*User) error) (User, Result, error) {
	var updated User
	var res Result
	err := s.run(ctx, "update_user", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateUser(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	var user User
	err := s.store.View(ctx, func(view TransactionView) error {
		u, ok := view.FindUser(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: id}
		}
		user = u
		return nil
	})
	return user, err
}

// LookupUserByEmail retrieves a user by unique email.
func (s *Service) LookupUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.store.View(ctx, func(view TransactionView) error {
		u, ok := view.FindUserByEmail(email)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: email}
		}
		user = u
		return nil
	})
	return user, err
}

// CreateOrganization persists a new organization.
func (s *Service) CreateOrganization(ctx context.Context, org Organization) (Organization, Result, error) {
	var created Organization
	var res Result
	err := s.run(ctx, "create_organization", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateOrganization(org)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateOrganization mutates an organization using the provided mutator.
func (s *Service) UpdateOrganization(ctx context.Context, id string, mutator func(*Organization) error) (Organization, Result, error) {
	var updated Organization
	var res Result
	err := s.run(ctx, "update_organization", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateOrganization(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// GetOrganization retrieves an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	var org Organization
	err := s.store.View(ctx, func(view TransactionView) error {
		o, ok := view.FindOrganization(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: id}
		}
		org = o
		return nil
	})
	return org, err
}

// LookupOrganizationByClerkID retrieves an organization by its identity-provider ID.
func (s *Service) LookupOrganizationByClerkID(ctx context.Context, clerkOrgID string) (Organization, error) {
	var org Organization
	err := s.store.View(ctx, func(view TransactionView) error {
		o, ok := view.FindOrganizationByClerkID(clerkOrgID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: clerkOrgID}
		}
		org = o
		return nil
	})
	return org, err
}

// CreateTheme persists a new working theme owned by its UserID.
func (s *Service) CreateTheme(ctx context.Context, theme Theme) (Theme, Result, error) {
	var created Theme
	var res Result
	err := s.run(ctx, "create_theme", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateTheme(theme)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateTheme mutates a theme on behalf of actorID, which must hold write
// permission. Ownership cannot change through this path.
func (s *Service) UpdateTheme(ctx context.Context, actorID, id string, mutator func(*Theme) error) (Theme, Result, error) {
	var updated Theme
	var res Result
	err := s.run(ctx, "update_theme", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if err := requireAccess(tx.Snapshot(), actorID, id, domain.PermissionWrite); err != nil {
				return err
			}
			var txErr error
			updated, txErr = tx.UpdateTheme(id, func(t *Theme) error {
				owner := t.UserID
				if err := mutator(t); err != nil {
					return err
				}
				t.UserID = owner
				return nil
			})
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// DeleteTheme removes a theme on behalf of actorID, which must hold delete
// permission. Snapshots and share grants are removed with it.
func (s *Service) DeleteTheme(ctx context.Context, actorID, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_theme", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if err := requireAccess(tx.Snapshot(), actorID, id, domain.PermissionDelete); err != nil {
				return err
			}
			return tx.DeleteTheme(id)
		})
		return id, err
	})
	return res, err
}

// GetTheme retrieves a theme on behalf of actorID, which must hold read
// permission.
func (s *Service) GetTheme(ctx context.Context, actorID, id string) (Theme, error) {
	var theme Theme
	err := s.store.View(ctx, func(view TransactionView) error {
		if err := requireAccess(view, actorID, id, domain.PermissionRead); err != nil {
			return err
		}
		t, _ := view.FindTheme(id)
		theme = t
		return nil
	})
	return theme, err
}

// ListThemesFor returns every theme actorID can read, in stable ID order.
func (s *Service) ListThemesFor(ctx context.Context, actorID string) ([]Theme, error) {
	var out []Theme
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, t := range view.ListThemes() {
			if resolvePermissions(view, actorID, t).Has(domain.PermissionRead) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}
