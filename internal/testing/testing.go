// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/keithriordan/foyer/internal/services"
)

// FakeVideoSource is a test double for [services.VideoSource]
type FakeVideoSource struct {
	Mine     []services.YouTubePlaylist
	ByID     map[string]services.YouTubePlaylist
	Items    map[string][]services.YouTubePlaylistItem
	Subs     []services.YouTubeSubscription
	Err      error
	ItemsErr error

	Requested []string
}

func (f *FakeVideoSource) MyPlaylists(ctx context.Context) ([]services.YouTubePlaylist, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Mine, nil
}

func (f *FakeVideoSource) Playlist(ctx context.Context, id string) (*services.YouTubePlaylist, error) {
	f.Requested = append(f.Requested, id)
	if f.Err != nil {
		return nil, f.Err
	}
	if p, ok := f.ByID[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *FakeVideoSource) PlaylistItems(ctx context.Context, playlistID string) ([]services.YouTubePlaylistItem, error) {
	if f.ItemsErr != nil {
		return nil, f.ItemsErr
	}
	return f.Items[playlistID], nil
}

func (f *FakeVideoSource) Subscriptions(ctx context.Context) ([]services.YouTubeSubscription, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Subs, nil
}

// StoredObject is one upload captured by [RecordingBlobStore]
type StoredObject struct {
	Bucket      string
	Key         string
	ContentType string
	Body        []byte
}

// RecordingBlobStore is a [services.BlobStore] that keeps uploads in memory
type RecordingBlobStore struct {
	mu      sync.Mutex
	Objects []StoredObject
	Err     error
}

func (s *RecordingBlobStore) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if s.Err != nil {
		return s.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects = append(s.Objects, StoredObject{Bucket: bucket, Key: key, ContentType: contentType, Body: data})
	return nil
}

func (s *RecordingBlobStore) PublicURL(bucket, key string) string {
	return "https://" + bucket + ".s3.amazonaws.com/" + key
}

// MockMailer records sent messages
type MockMailer struct {
	Sent []services.Message
	Err  error
}

func (m *MockMailer) Send(ctx context.Context, msg services.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// MockScreenshot returns Image, or Err when set
type MockScreenshot struct {
	Image []byte
	Err   error
	URLs  []string
}

func (m *MockScreenshot) Capture(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	m.URLs = append(m.URLs, pageURL)
	if m.Err != nil {
		return nil, m.Err
	}
	return io.NopCloser(bytes.NewReader(m.Image)), nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
