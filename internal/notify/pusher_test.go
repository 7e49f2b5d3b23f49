package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	firebase "firebase.google.com/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(r *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

const (
	fcmUnregistered = `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",
		"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`
	fcmInvalidArgument = `{"error":{"code":400,"message":"Message is too big","status":"INVALID_ARGUMENT",
		"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"INVALID_ARGUMENT"}]}}`
)

// newTestFCMPusher answers per token: "gone" is unregistered, "too-big" fails on the payload.
func newTestFCMPusher(t *testing.T) *FCMPusher {
	t.Helper()
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body := string(b)
		switch {
		case strings.Contains(body, `"token":"gone"`):
			return jsonResponse(r, http.StatusNotFound, fcmUnregistered), nil
		case strings.Contains(body, `"token":"too-big"`):
			return jsonResponse(r, http.StatusBadRequest, fcmInvalidArgument), nil
		}
		return jsonResponse(r, http.StatusOK, `{"name":"projects/sikon-test/messages/1"}`), nil
	})

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: "sikon-test"},
		option.WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	client, err := app.Messaging(ctx)
	require.NoError(t, err)
	return &FCMPusher{client: client}
}

func TestFCMPusherOnlyUnregisteredIsInvalid(t *testing.T) {
	p := newTestFCMPusher(t)

	res, err := p.SendMulticast(context.Background(), []string{"ok", "gone", "too-big"},
		Message{Title: "RAB", Body: "approved", Data: map[string]string{"type": "rab_item"}})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.NoError(t, res[0].Err)
	assert.False(t, res[0].Invalid)
	assert.NotEmpty(t, res[0].MessageID)

	assert.Error(t, res[1].Err)
	assert.True(t, res[1].Invalid, "unregistered tokens are deactivated")

	assert.Error(t, res[2].Err)
	assert.False(t, res[2].Invalid, "a payload error says nothing about the token")
}
