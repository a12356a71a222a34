package notify_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/notify"
)

func testSettings() domain.Settings {
	return domain.Settings{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550001111",
	}
}

func TestCall_OK(t *testing.T) {
	var got *http.Request
	var form map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA0001", "status": "queued"}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	sid, err := client.Call(context.Background(), testSettings(), "+15552223333", "You are nearly there")

	require.NoError(t, err)
	assert.Equal(t, "CA0001", sid)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Calls.json", got.URL.Path)
	assert.Equal(t, []string{"+15552223333"}, form["To"])
	assert.Equal(t, []string{"+15550001111"}, form["From"])
	assert.Equal(t, []string{"<Response><Say>You are nearly there</Say></Response>"}, form["Twiml"])

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("AC123:secret"))
	assert.Equal(t, wantAuth, got.Header.Get("Authorization"))
}

func TestCall_EscapesMessageForTwiml(t *testing.T) {
	var twiml string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		twiml = r.PostForm.Get("Twiml")
		w.Write([]byte(`{"sid": "CA0002"}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	_, err := client.Call(context.Background(), testSettings(), "+15552223333", `Bring <water> & "snacks"`)

	require.NoError(t, err)
	assert.Equal(t, "<Response><Say>Bring &lt;water&gt; &amp; &quot;snacks&quot;</Say></Response>", twiml)
}

func TestCall_MissingCredentialsBeforeAnyIO(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))

	for _, settings := range []domain.Settings{
		{},
		{AccountSID: "AC123"},
		{AccountSID: "AC123", AuthToken: "secret"},
		{AuthToken: "secret", FromNumber: "+15550001111"},
	} {
		_, err := client.Call(context.Background(), settings, "+15552223333", "hi")
		assert.ErrorIs(t, err, notify.ErrMissingCredentials)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
	assert.Zero(t, hits, "no network call may happen without full credentials")
}

func TestCall_ErrorMessageFieldSignalsFailure(t *testing.T) {
	// Twilio reports some failures with HTTP 200 plus an error_message body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sid": "CA0003", "error_message": "The number is unverified"}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	_, err := client.Call(context.Background(), testSettings(), "+15552223333", "hi")

	var carrierErr *notify.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, "The number is unverified", carrierErr.Message)
}

func TestCall_Non2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Authentication error", "code": 20003}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	_, err := client.Call(context.Background(), testSettings(), "+15552223333", "hi")

	var carrierErr *notify.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, http.StatusUnauthorized, carrierErr.StatusCode)
	assert.Equal(t, "Authentication error", carrierErr.Message)
}

func TestCall_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refused connection

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	_, err := client.Call(context.Background(), testSettings(), "+15552223333", "hi")

	require.Error(t, err)
	var carrierErr *notify.CarrierError
	assert.False(t, errors.As(err, &carrierErr), "transport failure is not a carrier rejection")
}

func TestSendSMS_OK(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM0001"}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	sid, err := client.SendSMS(context.Background(), testSettings(), "+15552223333", "I have arrived safely!")

	require.NoError(t, err)
	assert.Equal(t, "SM0001", sid)
	assert.Equal(t, []string{"I have arrived safely!"}, form["Body"])
}

func TestSendSMS_CarrierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Twilio SMS failed"}`))
	}))
	defer srv.Close()

	client := notify.NewClient(notify.WithBaseURL(srv.URL))
	_, err := client.SendSMS(context.Background(), testSettings(), "+15552223333", "hi")

	var carrierErr *notify.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, "Twilio SMS failed", carrierErr.Message)
}
