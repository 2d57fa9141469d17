package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAlertStore collects saved alerts; optionally fails
type memAlertStore struct {
	mu     sync.Mutex
	saved  []*Alert
	failOn bool
}

func (m *memAlertStore) SaveAlert(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn {
		return fmt.Errorf("disk full")
	}
	m.saved = append(m.saved, alert)
	return nil
}

// stubNotifier records sends on one channel; optionally fails
type stubNotifier struct {
	channel Channel
	err     error
	sent    []*Alert
}

func (n *stubNotifier) Channel() Channel { return n.channel }

func (n *stubNotifier) Send(ctx context.Context, alert *Alert) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, alert)
	return nil
}

func testAlert(channels ...Channel) *Alert {
	return &Alert{
		ID:        "a1",
		ToolID:    "t1",
		ToolName:  "BuildBot",
		AlertType: "price_change",
		Severity:  SeverityHigh,
		Title:     "price changed",
		Message:   "$10 -> $20",
		CreatedAt: time.Now(),
		Channels:  channels,
	}
}

func TestDispatchPersistsAndDelivers(t *testing.T) {
	store := &memAlertStore{}
	d, err := NewDispatcher(store, nil)
	require.NoError(t, err)

	email := &stubNotifier{channel: ChannelEmail}
	chat := &stubNotifier{channel: ChannelChat}
	d.Register(email)
	d.Register(chat)

	d.Dispatch(context.Background(), testAlert(ChannelEmail, ChannelChat, ChannelStore))

	assert.Len(t, store.saved, 1)
	assert.Len(t, email.sent, 1)
	assert.Len(t, chat.sent, 1)
}

func TestDispatchChannelFailureIsolated(t *testing.T) {
	store := &memAlertStore{}
	d, err := NewDispatcher(store, nil)
	require.NoError(t, err)

	failing := &stubNotifier{channel: ChannelEmail, err: fmt.Errorf("smtp down")}
	working := &stubNotifier{channel: ChannelChat}
	d.Register(failing)
	d.Register(working)

	// Email listed first, fails; chat still gets the alert
	d.Dispatch(context.Background(), testAlert(ChannelEmail, ChannelChat))

	assert.Len(t, store.saved, 1)
	assert.Len(t, working.sent, 1)
}

func TestDispatchMissingNotifierSkipped(t *testing.T) {
	store := &memAlertStore{}
	d, err := NewDispatcher(store, nil)
	require.NoError(t, err)

	// No webhook notifier registered
	d.Dispatch(context.Background(), testAlert(ChannelWebhook))
	assert.Len(t, store.saved, 1)
}

func TestDispatchStoreFailureStillDelivers(t *testing.T) {
	store := &memAlertStore{failOn: true}
	d, err := NewDispatcher(store, nil)
	require.NoError(t, err)

	console := &stubNotifier{channel: ChannelConsole}
	d.Register(console)

	d.Dispatch(context.Background(), testAlert(ChannelConsole))
	assert.Len(t, console.sent, 1)
}

func TestNewDispatcherRequiresStore(t *testing.T) {
	_, err := NewDispatcher(nil, nil)
	assert.Error(t, err)
}

func TestChatNotifier(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewChatNotifier(srv.URL)
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), testAlert(ChannelChat)))

	assert.Contains(t, payload["text"], "HIGH")
	assert.Contains(t, payload["text"], "price changed")
}

func TestChatNotifierNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := NewChatNotifier(srv.URL)
	require.NoError(t, err)
	assert.Error(t, n.Send(context.Background(), testAlert(ChannelChat)))
}

func TestWebhookNotifierFansOut(t *testing.T) {
	var hits sync.Map
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var alert Alert
			require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
			hits.Store(name, alert.ID)
			w.WriteHeader(http.StatusOK)
		}
	}
	srv1 := httptest.NewServer(handler("one"))
	defer srv1.Close()
	srv2 := httptest.NewServer(handler("two"))
	defer srv2.Close()

	n, err := NewWebhookNotifier([]string{srv1.URL, srv2.URL})
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), testAlert(ChannelWebhook)))

	id1, _ := hits.Load("one")
	id2, _ := hits.Load("two")
	assert.Equal(t, "a1", id1)
	assert.Equal(t, "a1", id2)
}

func TestWebhookNotifierPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	n, err := NewWebhookNotifier([]string{good.URL, bad.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), testAlert(ChannelWebhook))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestEmailConfigValidate(t *testing.T) {
	valid := EmailConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "alerts@example.com",
		To:   []string{"team@example.com"},
	}
	assert.NoError(t, valid.Validate())

	noHost := valid
	noHost.Host = ""
	assert.Error(t, noHost.Validate())

	noRecipients := valid
	noRecipients.To = nil
	assert.Error(t, noRecipients.Validate())
}
