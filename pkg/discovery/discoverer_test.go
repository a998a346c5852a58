package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(addr string, delay time.Duration) Finder {
	return FinderFunc(func(ctx context.Context) (*Device, error) {
		select {
		case <-time.After(delay):
			return &Device{Address: addr}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func failing(err error) Finder {
	return FinderFunc(func(context.Context) (*Device, error) { return nil, err })
}

func blocking() Finder {
	return FinderFunc(func(ctx context.Context) (*Device, error) {
		<-ctx.Done()
		return nil, ErrNotFound
	})
}

func TestChainFirstResultWins(t *testing.T) {
	c := NewChain([]Finder{
		found("10.0.0.2", 100*time.Millisecond),
		failing(errors.New("boom")),
		found("10.0.0.1", 0),
	})

	addr, err := c.DiscoverFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", addr)
}

func TestChainAllFail(t *testing.T) {
	c := NewChain([]Finder{failing(errors.New("a")), failing(ErrNotFound)})

	_, err := c.DiscoverFirst(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainTimeout(t *testing.T) {
	c := NewChain([]Finder{blocking()}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.DiscoverFirst(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChainParentCancelled(t *testing.T) {
	c := NewChain([]Finder{blocking()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.DiscoverFirst(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil).Find(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
