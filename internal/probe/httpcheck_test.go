package probe_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/CZERTAINLY/sunshine-supervisor/internal/probe"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("sunshine"))
	})
	mux.HandleFunc("/stall", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/redirect-stall", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/stall", http.StatusFound)
	})
	mux.HandleFunc("/hang", func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	// the portal serves a self signed certificate
	tlsSrv := httptest.NewTLSServer(mux)
	t.Cleanup(tlsSrv.Close)
	plainSrv := httptest.NewServer(mux)
	t.Cleanup(plainSrv.Close)

	var testCases = []struct {
		scenario string
		base     string
		path     string
		healthy  bool
	}{
		{"https ok", tlsSrv.URL, "/", true},
		{"http ok", plainSrv.URL, "/", true},
		{"https 503", tlsSrv.URL, "/stall", false},
		{"redirect to ok", tlsSrv.URL, "/redirect", true},
		{"redirect to 503", plainSrv.URL, "/redirect-stall", false},
		{"timeout", plainSrv.URL, "/hang", false},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.base + tt.path)
			require.NoError(t, err)
			checker := probe.NewHTTPChecker(u, 200*time.Millisecond)
			require.Equal(t, u.String(), checker.URL())

			err = checker.Check(t.Context())
			if tt.healthy {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}

	t.Run("status error", func(t *testing.T) {
		u, err := url.Parse(tlsSrv.URL + "/stall")
		require.NoError(t, err)
		err = probe.NewHTTPChecker(u, time.Second).Check(t.Context())
		require.ErrorIs(t, err, probe.ErrUnhealthy)
		require.ErrorContains(t, err, "503")
	})
}

func TestHTTPChecker_Refused(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	err = probe.NewHTTPChecker(u, time.Second).Check(t.Context())
	require.Error(t, err)
	require.NotErrorIs(t, err, probe.ErrUnhealthy)
}
