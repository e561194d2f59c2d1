package directory_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	tempgroup "github.com/goliatone/go-tempgroup"
	"github.com/goliatone/go-tempgroup/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// A fresh connection would see a fresh in-memory database.
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.NewCreateTable().
		Model((*directory.Member)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	return db
}

func TestBunDirectoryRegister(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dir := directory.New(db)

	member, err := dir.Register(ctx, "Steve", "member")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, "Steve", member.Subject)
	assert.Equal(t, "member", member.GroupName)

	t.Run("registration is idempotent", func(t *testing.T) {
		again, err := dir.Register(ctx, "Steve", "guest")
		require.NoError(t, err)
		assert.Equal(t, member.ID, again.ID)
		assert.Equal(t, "member", again.GroupName, "existing record wins")
	})
}

func TestBunDirectoryGroups(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dir := directory.New(db)

	_, err := dir.Register(ctx, "Steve", "member")
	require.NoError(t, err)

	t.Run("current group resolves from the record", func(t *testing.T) {
		group, err := dir.CurrentGroup(ctx, "Steve")
		require.NoError(t, err)
		assert.Equal(t, "member", group)
	})

	t.Run("set group persists for offline subjects", func(t *testing.T) {
		require.NoError(t, dir.SetGroup(ctx, "Steve", "vip"))

		group, err := dir.CurrentGroup(ctx, "Steve")
		require.NoError(t, err)
		assert.Equal(t, "vip", group)
	})

	t.Run("unknown subject fails with not found", func(t *testing.T) {
		_, err := dir.CurrentGroup(ctx, "Nobody")
		require.Error(t, err)
		assert.True(t, tempgroup.IsNotFound(err))

		err = dir.SetGroup(ctx, "Nobody", "vip")
		require.Error(t, err)
		assert.True(t, tempgroup.IsNotFound(err))
	})
}

type recordingNotifier struct {
	calls []string
	err   error
}

func (n *recordingNotifier) GroupChanged(ctx context.Context, subject, group string) error {
	n.calls = append(n.calls, subject+":"+group)
	return n.err
}

func TestBunDirectorySessionNotifier(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	t.Run("live sessions get refreshed", func(t *testing.T) {
		notifier := &recordingNotifier{}
		dir := directory.New(db, directory.WithSessionNotifier(notifier))

		_, err := dir.Register(ctx, "Alex", "member")
		require.NoError(t, err)

		require.NoError(t, dir.SetGroup(ctx, "Alex", "vip"))
		assert.Equal(t, []string{"Alex:vip"}, notifier.calls)
	})

	t.Run("notifier failure does not fail the mutation", func(t *testing.T) {
		notifier := &recordingNotifier{err: errors.New("session gone")}
		dir := directory.New(db, directory.WithSessionNotifier(notifier))

		_, err := dir.Register(ctx, "Robin", "member")
		require.NoError(t, err)

		require.NoError(t, dir.SetGroup(ctx, "Robin", "vip"))

		group, err := dir.CurrentGroup(ctx, "Robin")
		require.NoError(t, err)
		assert.Equal(t, "vip", group)
	})
}
