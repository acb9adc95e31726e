package fetch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		want    http.Header
		wantErr bool
	}{
		{
			name:  "no headers",
			lines: nil,
			want:  http.Header{},
		},
		{
			name:  "multiple headers",
			lines: []string{"Accept: */*", "X-Probe: a", "X-Probe: b"},
			want: http.Header{
				"Accept":  {"*/*"},
				"X-Probe": {"a", "b"},
			},
		},
		{
			name:    "malformed line",
			lines:   []string{"not a header"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.lines)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClientAddressOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Host)
	}))
	defer srv.Close()

	client, err := NewClient(Options{Address: srv.Listener.Addr().String()})
	require.NoError(t, err)
	defer client.CloseIdleConnections()

	resp, err := client.Get("http://test.local/x")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "test.local", string(body))
}

func TestNewClientReportsDials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	var dialed []string
	client, err := NewClient(Options{OnDial: func(addr string, err error) {
		assert.NoError(t, err)
		dialed = append(dialed, addr)
	}})
	require.NoError(t, err)
	defer client.CloseIdleConnections()

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	assert.Equal(t, []string{srv.Listener.Addr().String()}, dialed)
}

func TestNewClientDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	client, err := NewClient(Options{})
	require.NoError(t, err)
	defer client.CloseIdleConnections()

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestNewClientInvalidTransport(t *testing.T) {
	_, err := NewClient(Options{Transport: "nosuchscheme://x"})
	require.Error(t, err)
}
