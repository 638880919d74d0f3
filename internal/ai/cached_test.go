package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	data, ok := m.entries[key]
	return data, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	return nil
}

func TestCachedProviderReusesGenerateResult(t *testing.T) {
	inner := &stubProvider{generateResp: &Response{Text: "cached answer"}, configured: true}
	cache := newMemoryCache()
	p := NewCachedProvider(inner, cache, time.Hour)

	first, err := p.Generate(context.Background(), "same prompt", Options{})
	require.NoError(t, err)

	second, err := p.Generate(context.Background(), "same prompt", Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, inner.generateCnt)
}

func TestCachedProviderKeysOnPromptText(t *testing.T) {
	inner := &stubProvider{generateResp: &Response{Text: "answer"}, configured: true}
	p := NewCachedProvider(inner, newMemoryCache(), time.Hour)

	_, err := p.Generate(context.Background(), "prompt one", Options{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "prompt two", Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.generateCnt)
}

func TestCachedProviderSurvivesCacheFailure(t *testing.T) {
	inner := &stubProvider{generateResp: &Response{Text: "live answer"}, configured: true}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	p := NewCachedProvider(inner, cache, time.Hour)

	resp, err := p.Generate(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "live answer", resp.Text)
}

func TestCachedProviderDoesNotCacheFailures(t *testing.T) {
	inner := &stubProvider{generateErr: ErrUnavailable, configured: true}
	cache := newMemoryCache()
	p := NewCachedProvider(inner, cache, time.Hour)

	_, err := p.Generate(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, cache.sets)
}

func TestCachedProviderPassesChatThrough(t *testing.T) {
	inner := &stubProvider{chatResp: &Response{Text: "turn"}, configured: true}
	cache := newMemoryCache()
	p := NewCachedProvider(inner, cache, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, inner.chatCnt)
	assert.Empty(t, cache.entries)
}

func TestCachedProviderNilCacheIsPassthrough(t *testing.T) {
	inner := &stubProvider{generateResp: &Response{Text: "answer"}, configured: true}
	p := NewCachedProvider(inner, nil, time.Hour)

	_, err := p.Generate(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "prompt", Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.generateCnt)
}
