package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/broker"
	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/pkg/metrics"
)

func scenarioCampaigns() StaticRepository {
	return StaticRepository{
		{ID: 1, Name: "purchasers", Rules: json.RawMessage(`{"field":"event_type","operator":"equals","value":"purchase"}`)},
		{ID: 2, Name: "big spenders", Rules: json.RawMessage(`{"field":"amount","operator":"greater_than","value":100}`)},
	}
}

func loadScenario(t *testing.T) []Campaign {
	t.Helper()
	svc, err := NewService(scenarioCampaigns(), config.CampaignsConfig{}, logger.NopLogger())
	require.NoError(t, err)
	campaigns, err := svc.Campaigns(context.Background())
	require.NoError(t, err)
	return campaigns
}

func TestMatcher_Scenarios(t *testing.T) {
	campaigns := loadScenario(t)
	m := NewMatcher(logger.NopLogger())

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    []int64
	}{
		{
			name:    "purchase over threshold matches both in order",
			payload: map[string]interface{}{"event_type": "purchase", "amount": 150.0},
			want:    []int64{1, 2},
		},
		{
			name:    "small signup matches nothing",
			payload: map[string]interface{}{"event_type": "signup", "amount": 50.0},
			want:    []int64{},
		},
		{
			name:    "purchase under threshold",
			payload: map[string]interface{}{"event_type": "purchase", "amount": 10.0},
			want:    []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(context.Background(), tt.payload, campaigns))
		})
	}
}

func TestMatcher_PreservesInputOrder(t *testing.T) {
	campaigns := loadScenario(t)
	campaigns[0], campaigns[1] = campaigns[1], campaigns[0]

	got := NewMatcher(logger.NopLogger()).Match(context.Background(),
		map[string]interface{}{"event_type": "purchase", "amount": 150.0}, campaigns)
	assert.Equal(t, []int64{2, 1}, got)
}

func TestMatcher_ErrorsExcludeOnlyTheFailingCampaign(t *testing.T) {
	svc, err := NewService(StaticRepository{
		{ID: 1, Rules: json.RawMessage(`{"field":"event_type","operator":"equals","value":"purchase"}`)},
		{ID: 2, Rules: json.RawMessage(`{"field":"event_type","operator":"regex","value":".*"}`)},
		{ID: 3, Rules: json.RawMessage(`{"and": "not-a-list"}`)},
		{ID: 4, Rules: json.RawMessage(`{"not": {"field":"event_type","operator":"regex","value":"x"}}`)},
		{ID: 5, Rules: json.RawMessage(`{"field":"amount","operator":"greater_than","value":100}`)},
		{ID: 5, Rules: json.RawMessage(`{"field":"amount","operator":"greater_than","value":100}`)},
	}, config.CampaignsConfig{}, logger.NopLogger())
	require.NoError(t, err)

	campaigns, err := svc.Campaigns(context.Background())
	require.NoError(t, err)
	require.Error(t, campaigns[2].RuleErr)

	got := NewMatcher(logger.NopLogger()).Match(context.Background(),
		map[string]interface{}{"event_type": "purchase", "amount": 150.0}, campaigns)
	assert.Equal(t, []int64{1, 5}, got)
}

func TestMatcher_UncompiledCampaignNeverMatches(t *testing.T) {
	got := NewMatcher(logger.NopLogger()).Match(context.Background(),
		map[string]interface{}{"a": 1.0}, []Campaign{{ID: 9}})
	assert.Empty(t, got)
}

type countingRepo struct {
	calls     atomic.Int32
	campaigns StaticRepository
	err       error
}

func (r *countingRepo) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.campaigns.ListCampaigns(ctx)
}

func TestService_UncachedReadsEveryTime(t *testing.T) {
	repo := &countingRepo{campaigns: scenarioCampaigns()}
	svc, err := NewService(repo, config.CampaignsConfig{}, logger.NopLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		campaigns, err := svc.Campaigns(context.Background())
		require.NoError(t, err)
		assert.Len(t, campaigns, 2)
	}
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.NoError(t, svc.StartReloader(context.Background()))
}

func TestService_CachedServesSnapshot(t *testing.T) {
	repo := &countingRepo{campaigns: scenarioCampaigns()}
	svc, err := NewService(repo, config.CampaignsConfig{ReloadIntervalSeconds: 60}, logger.NopLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		campaigns, err := svc.Campaigns(context.Background())
		require.NoError(t, err)
		require.Len(t, campaigns, 2)
		assert.NotNil(t, campaigns[0].Rule)
	}
	assert.Equal(t, int32(1), repo.calls.Load())
	assert.False(t, svc.LoadedAt().IsZero())

	require.NoError(t, svc.ReloadCampaigns(context.Background()))
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestService_LoadError(t *testing.T) {
	repo := &countingRepo{err: errors.New("connection refused")}
	svc, err := NewService(repo, config.CampaignsConfig{ReloadIntervalSeconds: 60}, logger.NopLogger())
	require.NoError(t, err)

	_, err = svc.Campaigns(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestService_StartReloaderStopsOnCancel(t *testing.T) {
	repo := &countingRepo{campaigns: scenarioCampaigns()}
	svc, err := NewService(repo, config.CampaignsConfig{ReloadIntervalSeconds: 60}, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StartReloader(ctx) }()

	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reloader did not stop")
	}
}

type fakeReloader struct {
	calls int
	err   error
}

func (r *fakeReloader) ReloadCampaigns(context.Context) error {
	r.calls++
	return r.err
}

func TestHandler_HandleUpdate(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		reloadErr error
		wantCalls int
		wantErr   bool
	}{
		{name: "create reloads", data: `{"action":"create","campaign_id":3}`, wantCalls: 1},
		{name: "reload reloads", data: `{"action":"reload"}`, wantCalls: 1},
		{name: "unknown action ignored", data: `{"action":"archive"}`, wantCalls: 0},
		{name: "garbage ignored", data: `not json`, wantCalls: 0},
		{name: "reload failure surfaces", data: `{"action":"delete","campaign_id":1}`, reloadErr: errors.New("db down"), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReloader{err: tt.reloadErr}
			h := NewHandler(r, logger.NopLogger())

			err := h.HandleUpdate(context.Background(), []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, r.calls)
		})
	}
}

type scriptedSubscription struct {
	messages []*broker.Message
	closed   bool
}

func (s *scriptedSubscription) Receive(ctx context.Context, _ time.Duration) (*broker.Message, error) {
	if len(s.messages) == 0 {
		return nil, broker.ErrSubscriptionClosed
	}
	msg := s.messages[0]
	s.messages = s.messages[1:]
	return msg, nil
}

func (s *scriptedSubscription) Depth() int64 { return 0 }

func (s *scriptedSubscription) Close() error {
	s.closed = true
	return nil
}

func TestHandler_Listen(t *testing.T) {
	r := &fakeReloader{}
	sub := &scriptedSubscription{messages: []*broker.Message{
		{Payload: []byte(`{"action":"update","campaign_id":1}`)},
		nil,
		{Payload: []byte(`{"action":"delete","campaign_id":2}`)},
	}}

	err := NewHandler(r, logger.NopLogger()).Listen(context.Background(), sub, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.calls)
	assert.True(t, sub.closed)
}

func TestHandler_ListenCountsReloadFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.CampaignReloadFailuresTotal.WithLabelValues(reloadTriggerUpdate))

	r := &fakeReloader{err: errors.New("db down")}
	sub := &scriptedSubscription{messages: []*broker.Message{
		{Payload: []byte(`{"action":"update","campaign_id":1}`)},
		{Payload: []byte(`{"action":"archive"}`)},
	}}

	err := NewHandler(r, logger.NopLogger()).Listen(context.Background(), sub, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CampaignReloadFailuresTotal.WithLabelValues(reloadTriggerUpdate)))
}

func TestService_StartReloaderCountsFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.CampaignReloadFailuresTotal.WithLabelValues(reloadTriggerInterval))

	repo := &countingRepo{err: errors.New("connection refused")}
	svc, err := NewService(repo, config.CampaignsConfig{ReloadIntervalSeconds: 60}, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StartReloader(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.CampaignReloadFailuresTotal.WithLabelValues(reloadTriggerInterval)) == before+1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, svc.LoadedAt().IsZero())

	cancel()
	<-done
}
