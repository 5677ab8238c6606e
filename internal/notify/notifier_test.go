package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSender struct {
	name   string
	titles []string
	err    error
}

func (s *memSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *memSender) Name() string { return s.name }

func TestNotifyRespectsAllowlist(t *testing.T) {
	s := &memSender{name: "mem"}
	n := NewNotifier([]Sender{s}, []string{"deposit_confirmed", "tx_failed"}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "deposit_confirmed", "Deposit", "done"))
	require.NoError(t, n.Notify(context.Background(), "faucet_minted", "Faucet", "ignored"))
	require.Equal(t, []string{"Deposit"}, s.titles)
}

func TestEmptyAllowlistPassesEverything(t *testing.T) {
	s := &memSender{name: "mem"}
	n := NewNotifier([]Sender{s}, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "anything", "Hello", "world"))
	require.Len(t, s.titles, 1)
}

func TestOneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &memSender{name: "bad", err: errors.New("boom")}
	good := &memSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), "split_confirmed", "Split", "done")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad: boom")
	require.Equal(t, []string{"Split"}, good.titles)
}

func TestTelegramSenderPostsForm(t *testing.T) {
	var gotPath, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotText = r.PostFormValue("text")
		require.Equal(t, "42", r.PostFormValue("chat_id"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL

	require.NoError(t, s.Send(context.Background(), "Market created", "stcore is live"))
	require.Equal(t, "/bottok/sendMessage", gotPath)
	require.Equal(t, "*Market created*\nstcore is live", gotText)
}

func TestDiscordSenderReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "Deposit", "done")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
