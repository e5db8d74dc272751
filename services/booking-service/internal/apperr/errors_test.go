package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("create: %w", Conflict("slot %s taken", "10:00"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "slot 10:00 taken", Reason(err))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestUnknownErrorsAreDependencies(t *testing.T) {
	err := errors.New("connection reset")
	assert.Equal(t, KindDependency, KindOf(err))
	assert.Empty(t, Reason(err))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, Is(nil, KindDependency))
}

func TestDependencyUnwraps(t *testing.T) {
	root := errors.New("timeout")
	err := Dependency("redis write", root)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "dependency: redis write: timeout", err.Error())
	assert.Equal(t, "policy_violation: closed", Policy("closed").Error())
}
