// Package directory provides a Bun-backed GroupDirectory: the members table
// is the system of record for a subject's permission group, so lookups and
// mutations work whether or not the subject is currently connected.
package directory

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	tempgroup "github.com/goliatone/go-tempgroup"
)

// Member is one directory record. IDs are derived from the subject key with
// hashid so repeated registrations of the same subject stay idempotent.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:mbr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Subject       string     `bun:"subject,notnull,unique" json:"subject,omitempty"`
	GroupName     string     `bun:"group_name,notnull" json:"group_name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SessionNotifier pushes a group change into a subject's live session, when
// one exists. Offline subjects are skipped; the table already holds the
// change.
type SessionNotifier interface {
	GroupChanged(ctx context.Context, subject, group string) error
}

// Members is the repository surface for directory records.
type Members interface {
	repository.Repository[*Member]
}

// NewMembersRepository builds the generic bun repository for Member rows.
func NewMembersRepository(db *bun.DB) Members {
	return repository.NewRepository[*Member](db, repository.ModelHandlers[*Member]{
		NewRecord: func() *Member { return &Member{} },
		GetID: func(m *Member) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Member, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})
}

// BunDirectory implements tempgroup.GroupDirectory over a members table.
type BunDirectory struct {
	db       *bun.DB
	members  Members
	notifier SessionNotifier
	logger   tempgroup.Logger
}

var _ tempgroup.GroupDirectory = (*BunDirectory)(nil)

// Option configures a BunDirectory.
type Option func(*BunDirectory)

// WithSessionNotifier propagates group changes to live sessions.
func WithSessionNotifier(n SessionNotifier) Option {
	return func(d *BunDirectory) {
		d.notifier = n
	}
}

// WithLogger overrides the directory logger.
func WithLogger(logger tempgroup.Logger) Option {
	return func(d *BunDirectory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a directory backed by db.
func New(db *bun.DB, opts ...Option) *BunDirectory {
	d := &BunDirectory{
		db:      db,
		members: NewMembersRepository(db),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// Register creates the directory record for subject if it does not exist,
// returning the stored row either way.
func (d *BunDirectory) Register(ctx context.Context, subject, group string) (*Member, error) {
	record := &Member{
		Subject:   subject,
		GroupName: group,
	}

	if id, err := hashid.NewUUID(subject); err == nil {
		record.ID = id
	}

	member, err := d.members.GetOrCreate(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not register member").
			WithMetadata(map[string]any{
				"subject": subject,
			})
	}

	return member, nil
}

// CurrentGroup resolves the subject's group from the persisted record.
func (d *BunDirectory) CurrentGroup(ctx context.Context, subject string) (string, error) {
	member, err := d.find(ctx, subject)
	if err != nil {
		return "", err
	}
	return member.GroupName, nil
}

// SetGroup updates the persisted record and, when a notifier is configured,
// refreshes the subject's live session. A notifier failure is logged, not
// returned: the record is already the system of record.
func (d *BunDirectory) SetGroup(ctx context.Context, subject, group string) error {
	member, err := d.find(ctx, subject)
	if err != nil {
		return err
	}

	member.GroupName = group
	now := time.Now()
	member.UpdatedAt = &now

	if _, err := d.members.Update(ctx, member, repository.UpdateByID(member.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not update member group").
			WithMetadata(map[string]any{
				"subject": subject,
				"group":   group,
			})
	}

	if d.notifier != nil {
		if err := d.notifier.GroupChanged(ctx, subject, group); err != nil && d.logger != nil {
			d.logger.Warn("session refresh failed for %q: %v", subject, err)
		}
	}

	return nil
}

func (d *BunDirectory) find(ctx context.Context, subject string) (*Member, error) {
	record := &Member{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.subject = ?", subject).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, tempgroup.ErrSubjectNotFound.WithMetadata(map[string]any{
				"subject": subject,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "member lookup failed").
			WithMetadata(map[string]any{
				"subject": subject,
			})
	}

	return record, nil
}
