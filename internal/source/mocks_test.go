package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

type mockFetcher struct {
	mu      sync.Mutex
	data    map[string][]byte
	fetched []string
}

func (m *mockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, url)
	if d, ok := m.data[url]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

// mockInputReader は gs:// / s3:// の読み込みを objects から返し、ローカルパスは remoteio に任せます。
type mockInputReader struct {
	mu      sync.Mutex
	objects map[string]string
	opened  []string
}

func (m *mockInputReader) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !remoteio.IsRemoteURI(path) {
		return remoteio.NewUniversalInputReader(nil, nil).Open(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, path)
	content, ok := m.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockInputReader) List(ctx context.Context, path string, callback func(string) error) error {
	return errors.New("not implemented")
}

func allowAll(string) (bool, error) { return true, nil }
