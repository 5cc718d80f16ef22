package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"allergen-engine/internal/core/ai/provider"
	"allergen-engine/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls   int32
	release chan struct{}
	err     error
}

func (p *stubProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Response{Content: "echo: " + req.Messages[len(req.Messages)-1].Content}, nil
}

func (p *stubProvider) GetModel() string          { return "stub" }
func (p *stubProvider) GetTimeout() time.Duration { return time.Second }
func (p *stubProvider) Close() error              { return nil }

func TestDo(t *testing.T) {
	m := NewManager(&stubProvider{}, Options{Workers: 3, MaxSize: 10})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.Do(context.Background(), provider.NewRequest("", "hello", 0, 0))
			assert.NoError(t, err)
			assert.Equal(t, "echo: hello", resp.Content)
		}()
	}
	wg.Wait()

	st := m.GetQueueStatus()
	assert.Equal(t, int64(8), st.ProcessedCount)
	assert.Equal(t, 3, st.Workers)
	assert.Equal(t, 10, st.MaxQueueSize)
}

func TestDoPropagatesProviderError(t *testing.T) {
	m := NewManager(&stubProvider{err: errors.New("upstream down")}, Options{Workers: 1, MaxSize: 1})
	defer m.Close()

	_, err := m.Do(context.Background(), provider.NewRequest("", "x", 0, 0))
	assert.EqualError(t, err, "upstream down")
}

func TestEnqueueFull(t *testing.T) {
	p := &stubProvider{release: make(chan struct{})}
	m := NewManager(p, Options{Workers: 1, MaxSize: 1})

	// the single worker takes the first request and blocks
	_, err := m.Enqueue(context.Background(), provider.NewRequest("", "a", 0, 0))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) == 1 }, time.Second, time.Millisecond)

	_, err = m.Enqueue(context.Background(), provider.NewRequest("", "b", 0, 0))
	require.NoError(t, err, "fills the buffer")

	_, err = m.Enqueue(context.Background(), provider.NewRequest("", "c", 0, 0))
	assert.ErrorIs(t, err, common.ErrQueueFull)

	close(p.release)
	m.Close()

	_, err = m.Enqueue(context.Background(), provider.NewRequest("", "d", 0, 0))
	assert.ErrorIs(t, err, common.ErrQueueClosed)
}

func TestDoHonorsContext(t *testing.T) {
	p := &stubProvider{release: make(chan struct{})}
	m := NewManager(p, Options{Workers: 1, MaxSize: 4})
	defer func() {
		close(p.release)
		m.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Do(ctx, provider.NewRequest("", "slow", 0, 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
