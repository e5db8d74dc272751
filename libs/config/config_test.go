package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParams map[string]string

func (f fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

func TestPort(t *testing.T) {
	t.Setenv("APPTCHAT_PORT", "70000")
	_, err := Port("APPTCHAT_PORT", "8080")
	require.Error(t, err)

	t.Setenv("APPTCHAT_PORT", "")
	p, err := Port("APPTCHAT_PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)
}

func TestIntBoolDuration(t *testing.T) {
	t.Setenv("APPTCHAT_INT", "12")
	n, err := Int("APPTCHAT_INT", 3)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	t.Setenv("APPTCHAT_INT", "twelve")
	_, err = Int("APPTCHAT_INT", 3)
	require.Error(t, err)

	t.Setenv("APPTCHAT_BOOL", "off")
	assert.False(t, Bool("APPTCHAT_BOOL", true))
	assert.True(t, Bool("APPTCHAT_MISSING", true))

	t.Setenv("APPTCHAT_DUR", "86400")
	d, err := Duration("APPTCHAT_DUR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	t.Setenv("APPTCHAT_DUR", "1500ms")
	d, err = Duration("APPTCHAT_DUR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestSecret(t *testing.T) {
	ctx := context.Background()
	params := fakeParams{"/apptchat/openai": " sk-from-ssm \n"}

	t.Setenv("APPTCHAT_KEY", "")
	t.Setenv("APPTCHAT_KEY_PARAM", "/apptchat/openai")
	v, err := Secret(ctx, "APPTCHAT_KEY", params)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-ssm", v)

	t.Setenv("APPTCHAT_KEY", "sk-direct")
	v, err = Secret(ctx, "APPTCHAT_KEY", params)
	require.NoError(t, err)
	assert.Equal(t, "sk-direct", v)

	t.Setenv("APPTCHAT_KEY", "")
	t.Setenv("APPTCHAT_KEY_PARAM", "/apptchat/missing")
	_, err = Secret(ctx, "APPTCHAT_KEY", params)
	require.Error(t, err)

	v, err = Secret(ctx, "APPTCHAT_KEY", nil)
	require.NoError(t, err)
	assert.Empty(t, v)
}
