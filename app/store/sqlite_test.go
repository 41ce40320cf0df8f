package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepLocal(t *testing.T) *Local {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLocal(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocal_SaveAndList(t *testing.T) {
	s := prepLocal(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	modules := []Module{
		{ID: "m-old", Name: "oldest", Version: 1, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "m-new", Name: "newest", Version: 3, CreatedAt: now},
		{ID: "m-mid", Name: "middle", Description: "in between", Version: 2, Archived: true, CreatedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, s.SaveModules(ctx, modules))

	list, err := s.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// newest first
	assert.Equal(t, "m-new", list[0].ID)
	assert.Equal(t, "m-mid", list[1].ID)
	assert.Equal(t, "m-old", list[2].ID)

	// fields round-trip
	assert.Equal(t, "in between", list[1].Description)
	assert.True(t, list[1].Archived)
	assert.Equal(t, 2, list[1].Version)
	assert.Equal(t, now.Add(-time.Hour).Unix(), list[1].CreatedAt.Unix())
}

func TestLocal_ListTiesOrderedByID(t *testing.T) {
	s := prepLocal(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveModules(ctx, []Module{
		{ID: "a", Name: "a", CreatedAt: ts},
		{ID: "c", Name: "c", CreatedAt: ts},
		{ID: "b", Name: "b", CreatedAt: ts},
	}))

	list, err := s.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestLocal_ArchiveModule(t *testing.T) {
	s := prepLocal(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.SaveModules(ctx, []Module{
		{ID: "m1", Name: "first", CreatedAt: now},
		{ID: "m2", Name: "second", CreatedAt: now.Add(-time.Minute)},
	}))

	require.NoError(t, s.ArchiveModule(ctx, "m1"))

	m1, err := s.GetModule(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m1.Archived)

	// only m1 changed
	m2, err := s.GetModule(ctx, "m2")
	require.NoError(t, err)
	assert.False(t, m2.Archived)

	// archiving again is a no-op, not an error
	require.NoError(t, s.ArchiveModule(ctx, "m1"))
}

func TestLocal_ArchiveModuleNotFound(t *testing.T) {
	s := prepLocal(t)
	err := s.ArchiveModule(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_GetModuleNotFound(t *testing.T) {
	s := prepLocal(t)
	_, err := s.GetModule(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_SaveModulesUpsert(t *testing.T) {
	s := prepLocal(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.SaveModules(ctx, []Module{{ID: "m1", Name: "first", Version: 1, CreatedAt: now}}))
	require.NoError(t, s.SaveModules(ctx, []Module{{ID: "m1", Name: "first renamed", Version: 2, CreatedAt: now}}))

	list, err := s.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first renamed", list[0].Name)
	assert.Equal(t, 2, list[0].Version)
}
