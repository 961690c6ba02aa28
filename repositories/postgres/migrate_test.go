package postgres

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMigrate struct {
	mock.Mock
}

func (m *mockMigrate) Up() error {
	return m.Called().Error(0)
}

func (m *mockMigrate) Down() error {
	return m.Called().Error(0)
}

func (m *mockMigrate) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *mockMigrate) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigrator_Up(t *testing.T) {
	t.Run("applies and reports version", func(t *testing.T) {
		mm := new(mockMigrate)
		mm.On("Up").Return(nil)
		mm.On("Version").Return(uint(2), false, nil)

		m := &Migrator{m: mm, logger: zap.NewNop()}
		require.NoError(t, m.Up())
		mm.AssertExpectations(t)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		mm := new(mockMigrate)
		mm.On("Up").Return(migrate.ErrNoChange)
		mm.On("Version").Return(uint(2), false, nil)

		m := &Migrator{m: mm, logger: zap.NewNop()}
		assert.NoError(t, m.Up())
	})

	t.Run("failure is wrapped", func(t *testing.T) {
		mm := new(mockMigrate)
		mm.On("Up").Return(errors.New("syntax error"))

		m := &Migrator{m: mm, logger: zap.NewNop()}
		err := m.Up()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrate up")
	})
}

func TestMigrator_Version(t *testing.T) {
	t.Run("nil version means nothing applied", func(t *testing.T) {
		mm := new(mockMigrate)
		mm.On("Version").Return(uint(0), false, migrate.ErrNilVersion)

		m := &Migrator{m: mm, logger: zap.NewNop()}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), v)
		assert.False(t, dirty)
	})

	t.Run("dirty state is surfaced", func(t *testing.T) {
		mm := new(mockMigrate)
		mm.On("Version").Return(uint(1), true, nil)

		m := &Migrator{m: mm, logger: zap.NewNop()}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), v)
		assert.True(t, dirty)
	})
}

func TestMigrator_DownAndClose(t *testing.T) {
	mm := new(mockMigrate)
	mm.On("Down").Return(migrate.ErrNoChange)
	srcErr := errors.New("source")
	mm.On("Close").Return(srcErr, nil)

	m := &Migrator{m: mm, logger: zap.NewNop()}
	assert.NoError(t, m.Down())
	assert.ErrorIs(t, m.Close(), srcErr)
	mm.AssertExpectations(t)
}

func TestMigrationsFS_Pairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)

	users, err := fs.ReadFile(migrationsFS, "migrations/000001_create_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(users), "users_email_key UNIQUE (email)")
}
