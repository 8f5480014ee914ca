package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownChain_ReverseOrderJoinsErrors(t *testing.T) {
	t.Parallel()

	errFirst := errors.New("first")
	errLast := errors.New("last")

	var (
		order []string
		stops shutdownChain
	)

	stops.add(func(context.Context) error {
		order = append(order, "provider")

		return errFirst
	})
	stops.add(func(context.Context) error {
		order = append(order, "textfile")

		return errLast
	})

	err := stops.run(context.Background())

	require.ErrorIs(t, err, errFirst)
	require.ErrorIs(t, err, errLast)
	assert.Equal(t, []string{"textfile", "provider"}, order)
}

func TestShutdownChain_Empty(t *testing.T) {
	t.Parallel()

	var stops shutdownChain

	assert.NoError(t, stops.run(context.Background()))
}

func TestBuildResource_Attributes(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ServiceVersion = "1.2.3"

	res := buildResource(cfg)

	attrs := make(map[string]string)
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}

	assert.Equal(t, "hllsim", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "cli", attrs["app.mode"])
}
