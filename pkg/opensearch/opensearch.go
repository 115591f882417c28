// Package opensearch opens the optional OpenSearch client used for user search.
package opensearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
)

var (
	ErrConnectionFailed  = errors.New("opensearch connection failed")
	ErrHealthcheckFailed = errors.New("opensearch healthcheck failed")
)

// Config is optional: an empty address list disables search indexing.
type Config struct {
	Addresses  []string `env:"OPENSEARCH_ADDRESSES"`
	Username   string   `env:"OPENSEARCH_USERNAME"`
	Password   string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	UsersIndex string   `env:"OPENSEARCH_USERS_INDEX" envDefault:"taskflow-users"`
}

// Enabled reports whether any address is configured.
func (c Config) Enabled() bool { return len(c.Addresses) > 0 }

// New creates a client and verifies the cluster answers.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if err := Healthcheck(client)(ctx); err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return client, nil
}

// Healthcheck calls the cluster info endpoint.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := client.Info(client.Info.WithContext(ctx))
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return errors.Join(ErrHealthcheckFailed, fmt.Errorf("status %s", res.Status()))
		}
		return nil
	}
}
