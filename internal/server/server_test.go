package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repobrief/internal/apperr"
	"repobrief/internal/github"
	"repobrief/internal/logging"
	"repobrief/internal/pipeline"
	"repobrief/internal/types"
)

type stubSummarizer func(ctx context.Context, url string) (types.Response, error)

func (f stubSummarizer) Summarize(ctx context.Context, url string) (types.Response, error) {
	return f(ctx, url)
}

var okResponse = types.Response{
	Summary:      "A demo.",
	Technologies: []string{"Go"},
	Structure:    []string{"`main.go` starts the program."},
}

func parsingSummarizer() stubSummarizer {
	return func(ctx context.Context, url string) (types.Response, error) {
		if _, err := github.ParseURL(url); err != nil {
			return types.Response{}, err
		}
		pipeline.EmitterFrom(ctx).Emit(pipeline.Event{Stage: pipeline.StagePlan, Message: "selected files", Progress: 40})
		return okResponse, nil
	}
}

func newTestServer(t *testing.T, s Summarizer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewMux(NewHandler(s), logging.NewDiscardLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, payload string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/summarize", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestSummarizeOK(t *testing.T) {
	srv := newTestServer(t, parsingSummarizer())
	resp, body := post(t, srv, `{"github_url": "https://github.com/psf/requests"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var got types.Response
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, okResponse, got)
}

func TestSummarizeErrors(t *testing.T) {
	srv := newTestServer(t, parsingSummarizer())
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"bad url", `{"github_url": "https://example.com/x/y"}`, http.StatusBadRequest},
		{"not json", `github_url=x`, http.StatusUnprocessableEntity},
		{"missing field", `{}`, http.StatusUnprocessableEntity},
		{"wrong type", `{"github_url": 42}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := post(t, srv, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			var env apperr.Envelope
			require.NoError(t, json.Unmarshal(body, &env))
			assert.Equal(t, apperr.InvalidGitHubURL, env.Error.Code)
			assert.NotNil(t, env.Error.Details)
		})
	}
}

func TestSummarizeMapsCodedErrors(t *testing.T) {
	srv := newTestServer(t, stubSummarizer(func(context.Context, string) (types.Response, error) {
		return types.Response{}, apperr.New(apperr.GitHubRateLimit, "GitHub rate limit exceeded").WithDetail("repository", "a/b")
	}))
	resp, body := post(t, srv, `{"github_url": "https://github.com/a/b"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"code":"GITHUB_RATE_LIMIT","message":"GitHub rate limit exceeded","details":{"repository":"a/b"}}}`, string(body))
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t, parsingSummarizer())
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/summarize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsReused(t *testing.T) {
	srv := newTestServer(t, parsingSummarizer())
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/summarize/stream"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn) []streamOutbound {
	t.Helper()
	var out []streamOutbound
	for {
		var msg streamOutbound
		if err := conn.ReadJSON(&msg); err != nil {
			return out
		}
		out = append(out, msg)
	}
}

func TestStreamResult(t *testing.T) {
	conn := dialStream(t, newTestServer(t, parsingSummarizer()))
	require.NoError(t, conn.WriteJSON(map[string]string{"github_url": "https://github.com/psf/requests"}))

	msgs := readAll(t, conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgStage, msgs[0].Type)
	assert.Equal(t, pipeline.StagePlan, msgs[0].Stage)
	assert.EqualValues(t, 40, msgs[0].Progress)
	assert.Equal(t, MsgResult, msgs[1].Type)
	require.NotNil(t, msgs[1].Result)
	assert.Equal(t, okResponse, *msgs[1].Result)
}

func TestStreamErrors(t *testing.T) {
	srv := newTestServer(t, parsingSummarizer())

	conn := dialStream(t, srv)
	require.NoError(t, conn.WriteJSON(map[string]string{"github_url": "nope"}))
	msgs := readAll(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgError, msgs[0].Type)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, apperr.InvalidGitHubURL, msgs[0].Error.Code)

	conn = dialStream(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	msgs = readAll(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, apperr.InvalidGitHubURL, msgs[0].Error.Code)
}
