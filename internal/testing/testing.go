// package testing contains shared testing utilities: writer and transport doubles,
// in-memory persistence ports and a fake storefront backend
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

// ErrInjected is returned by every failing double in this package.
var ErrInjected = errors.New("injected failure")

// FWriter fails every write.
type FWriter struct{}

func (FWriter) Write([]byte) (int, error) { return 0, ErrInjected }

// LimitedWriter passes the first limit writes to target and fails the rest.
type LimitedWriter struct {
	limit  int
	writes int
	target io.Writer
}

func NewLimitedWriter(limit int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{limit: limit, target: target}
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.writes >= l.limit {
		return 0, ErrInjected
	}
	l.writes++
	return l.target.Write(p)
}

// RoundTripFunc adapts a function to [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// FixedTransport answers every request with resp and err.
func FixedTransport(resp *http.Response, err error) RoundTripFunc {
	return func(*http.Request) (*http.Response, error) { return resp, err }
}

// FailingBody is a response body whose reads fail.
type FailingBody struct{}

func (FailingBody) Read([]byte) (int, error) { return 0, ErrInjected }
func (FailingBody) Close() error             { return nil }

// AssertFileExists reports a missing file without stopping the test.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

// AssertFileContains fails the test unless path exists and contains every want.
func AssertFileContains(t *testing.T, path string, want ...string) {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	for _, w := range want {
		if !strings.Contains(string(content), w) {
			t.Errorf("expected %s to contain %q, got:\n%s", path, w, content)
		}
	}
}
