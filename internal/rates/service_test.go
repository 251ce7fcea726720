package rates

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

type stubFetcher struct {
	rates []float64
	errs  []error
	calls int
}

func (s *stubFetcher) FetchRate(ctx context.Context) (float64, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	if i >= len(s.rates) {
		i = len(s.rates) - 1
	}
	return s.rates[i], nil
}

func TestCurrentBeforeFirstFetch(t *testing.T) {
	svc := NewService(&stubFetcher{rates: []float64{1300}}, time.Minute, slog.New(slog.DiscardHandler))

	_, err := svc.Current()
	require.ErrorIs(t, err, domain.ErrNoRateSnapshot)
}

func TestRefreshInstallsVersionedSnapshots(t *testing.T) {
	fetcher := &stubFetcher{rates: []float64{1300.5, 1310.25}}
	svc := NewService(fetcher, time.Minute, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.Refresh(context.Background()))
	first, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, 1300.5, first.Rate)
	assert.Equal(t, int64(1), first.Version)
	assert.False(t, first.FetchedAt.IsZero())

	require.NoError(t, svc.Refresh(context.Background()))
	second, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, 1310.25, second.Rate)
	assert.Equal(t, int64(2), second.Version)

	// The earlier snapshot is a value copy, untouched by the refresh.
	assert.Equal(t, 1300.5, first.Rate)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	fetcher := &stubFetcher{
		rates: []float64{1300, 0},
		errs:  []error{nil, errors.New("quote api down")},
	}
	svc := NewService(fetcher, time.Minute, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.Refresh(context.Background()))
	require.Error(t, svc.Refresh(context.Background()))

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, float64(1300), snap.Rate)
	assert.Equal(t, int64(1), snap.Version)
}

func TestClientFetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":1342.7}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	rate, err := client.FetchRate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1342.7, rate)
}

func TestClientFetchRateErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"http error", http.StatusInternalServerError, "boom"},
		{"empty payload", http.StatusOK, `[]`},
		{"zero price", http.StatusOK, `[{"code":"FRX.KRWUSD","basePrice":0}]`},
		{"bad json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).FetchRate(context.Background())
			require.Error(t, err)
		})
	}
}
