package awsx

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	calls int
	value *string
	err   error
	last  *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestParamStoreCachesValues(t *testing.T) {
	api := &fakeSSM{value: aws.String("secret")}
	ps, err := NewParamStore(api)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := ps.GetParameter(context.Background(), " /apptchat/key ")
		require.NoError(t, err)
		assert.Equal(t, "secret", v)
	}
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "/apptchat/key", aws.ToString(api.last.Name))
	assert.True(t, aws.ToBool(api.last.WithDecryption))
}

func TestParamStoreErrors(t *testing.T) {
	_, err := NewParamStore(nil)
	require.Error(t, err)

	ps, err := NewParamStore(&fakeSSM{err: errors.New("denied")})
	require.NoError(t, err)
	_, err = ps.GetParameter(context.Background(), "/x")
	require.ErrorContains(t, err, "denied")

	_, err = ps.GetParameter(context.Background(), "  ")
	require.Error(t, err)

	ps, err = NewParamStore(&fakeSSM{})
	require.NoError(t, err)
	_, err = ps.GetParameter(context.Background(), "/empty")
	require.ErrorContains(t, err, "no value")
}
