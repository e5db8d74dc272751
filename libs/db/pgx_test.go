package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeExclusionViolation, ConstraintName: "appointments_no_overlap"})
	assert.True(t, HasCode(err, CodeExclusionViolation))
	assert.False(t, HasCode(err, CodeUniqueViolation))
	assert.Equal(t, "appointments_no_overlap", ConstraintName(err))
	assert.False(t, HasCode(errors.New("plain"), CodeUniqueViolation))
	assert.Empty(t, ConstraintName(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestReadyCheckWithoutPool(t *testing.T) {
	require.Error(t, ReadyCheck(nil)(context.Background()))
}
