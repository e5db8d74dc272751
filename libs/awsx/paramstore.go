// Package awsx holds the small AWS SDK adapters shared by the services.
package awsx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParamStore reads decrypted SecureString parameters and memoizes them for
// the life of the process.
type ParamStore struct {
	api ssmAPI

	mu    sync.Mutex
	cache map[string]string
}

func NewParamStore(api ssmAPI) (*ParamStore, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &ParamStore{api: api, cache: map[string]string{}}, nil
}

// NewParamStoreFromConfig builds an SSM-backed store from an AWS config.
func NewParamStoreFromConfig(cfg aws.Config) *ParamStore {
	ps, _ := NewParamStore(ssm.NewFromConfig(cfg))
	return ps
}

func (p *ParamStore) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	p.mu.Lock()
	if v, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	out, err := p.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", name)
	}

	v := *out.Parameter.Value
	p.mu.Lock()
	p.cache[name] = v
	p.mu.Unlock()
	return v, nil
}

// LoadConfig loads the default AWS config chain (env, shared files, IMDS).
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
