package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

type nopConnector struct{}

func (nopConnector) Streams(context.Context, Config, model.Window) ([]Stream, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	Register("zz-test", func() Connector { return nopConnector{} })
	Register("aa-test", func() Connector { return nopConnector{} })
	t.Cleanup(func() {
		delete(registry, "zz-test")
		delete(registry, "aa-test")
	})

	ctor, err := Get("zz-test")
	require.NoError(t, err)
	assert.NotNil(t, ctor())

	names := Providers()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "aa-test")

	_, err = Get("nope")
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestConfigGet(t *testing.T) {
	cfg := Config{Extra: map[string]string{"priority": "warning", "empty": ""}}
	assert.Equal(t, "warning", cfg.Get("priority", "err"))
	assert.Equal(t, "err", cfg.Get("empty", "err"))
	assert.Equal(t, "100", Config{}.Get("lines", "100"))
}
