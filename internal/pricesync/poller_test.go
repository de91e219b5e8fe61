package pricesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootledger/lootledger/internal/priceapi"
)

type fakeAggregateClient struct {
	mu   sync.Mutex
	aggs map[int]*priceapi.Aggregate
	errs map[int]error
}

func (f *fakeAggregateClient) GetAggregate(ctx context.Context, item int) (*priceapi.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[item]; err != nil {
		return nil, err
	}
	return f.aggs[item], nil
}

type remoteUpsert struct {
	item         int
	price        float64
	contributors int
}

type fakePollerStore struct {
	mu      sync.Mutex
	items   []int
	upserts []remoteUpsert
}

func (f *fakePollerStore) RecentItems(ctx context.Context, since time.Time) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.items...), nil
}

func (f *fakePollerStore) UpsertRemotePrice(ctx context.Context, item int, price float64, contributors int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, remoteUpsert{item: item, price: price, contributors: contributors})
	return nil
}

func (f *fakePollerStore) snapshot() []remoteUpsert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteUpsert(nil), f.upserts...)
}

func pollerConfig() PollerConfig {
	cfg := DefaultPollerConfig()
	cfg.Interval = time.Hour // only the immediate cycle runs
	cfg.Concurrency = 2
	return cfg
}

func TestPollerStoresTrustedAggregates(t *testing.T) {
	client := &fakeAggregateClient{
		aggs: map[int]*priceapi.Aggregate{
			4023: {Item: 4023, Price: 12.0, Contributors: 9, UpdatedAt: time.Now()},
		},
	}
	st := &fakePollerStore{items: []int{4023}}

	p := NewPoller(pollerConfig(), client, st, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	require.Eventually(t, func() bool {
		return len(st.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	up := st.snapshot()[0]
	assert.Equal(t, 4023, up.item)
	assert.Equal(t, 12.0, up.price)
	assert.Equal(t, 9, up.contributors)
}

func TestPollerSkipsUntrustedAndMissing(t *testing.T) {
	client := &fakeAggregateClient{
		aggs: map[int]*priceapi.Aggregate{
			// Two contributors could be one person with two installs.
			512: {Item: 512, Price: 99.0, Contributors: 2, UpdatedAt: time.Now()},
			// 777 has no aggregate at all.
		},
	}
	st := &fakePollerStore{items: []int{512, 777}}

	p := NewPoller(pollerConfig(), client, st, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Untrusted == 1 && s.Missing == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, st.snapshot(), "neither aggregate may be stored")
}

func TestPollerCountsFetchErrors(t *testing.T) {
	client := &fakeAggregateClient{
		errs: map[int]error{4023: errors.New("connection refused")},
	}
	st := &fakePollerStore{items: []int{4023}}

	p := NewPoller(pollerConfig(), client, st, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	require.Eventually(t, func() bool {
		return p.Stats().Errors == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, st.snapshot())
}
