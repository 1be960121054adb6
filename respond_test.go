package rest_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvekas/rest"
)

func TestRespond_void_is_204(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Delete(r, "/items/{id}", func(_ context.Context, _ *struct {
		ID string `path:"id"`
	}) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, srv.URL+"/items/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRespond_editor(t *testing.T) {
	t.Parallel()

	type Req struct {
		Editor *rest.ResponseEditor
	}
	type Resp struct {
		OK bool `json:"ok"`
	}

	r := rest.New()
	rest.Get(r, "/edited", func(_ context.Context, req *Req) (*Resp, error) {
		req.Editor.SetStatus(http.StatusAccepted)
		req.Editor.Header().Set("X-Custom", "yes")
		req.Editor.SetCookie(&http.Cookie{Name: "sid", Value: "v1"})
		return &Resp{OK: true}, nil
	})
	rest.Get(r, "/text", func(_ context.Context, req *Req) (*rest.Void, error) {
		req.Editor.SetText("plain result")
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Run("status headers and cookies apply", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/edited", nil)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "yes", resp.Header.Get("X-Custom"))

		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "sid", cookies[0].Name)
	})

	t.Run("editor body is written verbatim for nil returns", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/text", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "plain result", string(raw))
	})
}

func TestRespond_returned_stream_wins_over_editor(t *testing.T) {
	t.Parallel()

	type Req struct {
		Editor *rest.ResponseEditor
	}

	r := rest.New()
	rest.Get(r, "/download", func(_ context.Context, req *Req) (*rest.Stream, error) {
		req.Editor.SetStatus(http.StatusAccepted)
		req.Editor.SetContentType("application/json")
		req.Editor.Header().Set("X-Trace", "t1")
		return &rest.Stream{
			ContentType: "application/pdf",
			Status:      http.StatusCreated,
			Body:        strings.NewReader("%PDF-"),
		}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/download", nil)

	// The returned object's status and content type win; editor headers
	// still apply.
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "t1", resp.Header.Get("X-Trace"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(raw))
}

func TestRespond_redirect(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/old", func(_ context.Context, _ *rest.Void) (*rest.Redirect, error) {
		return &rest.Redirect{URL: "/new", Status: http.StatusMovedPermanently}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/old", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/new", resp.Header.Get("Location"))
}

func TestRespond_sse(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/events", func(_ context.Context, _ *rest.Void) (*rest.SSEStream, error) {
		ch := make(chan rest.SSEEvent, 2)
		ch <- rest.SSEEvent{Event: "tick", Data: "one", ID: "1"}
		ch <- rest.SSEEvent{Data: map[string]int{"n": 2}}
		close(ch)
		return &rest.SSEStream{Events: ch}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/events", nil)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())

	assert.Contains(t, lines, "id: 1")
	assert.Contains(t, lines, "event: tick")
	assert.Contains(t, lines, "data: one")
	assert.Contains(t, lines, `data: {"n":2}`)
}

func TestRespond_negotiation(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Name string `json:"name" xml:"name"`
	}

	r := rest.New()
	rest.Get(r, "/item", func(_ context.Context, _ *rest.Void) (*Resp, error) {
		return &Resp{Name: "ada"}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		accept   string
		wantCT   string
		wantCode int
	}{
		"no accept defaults to json": {
			accept:   "",
			wantCT:   "application/json",
			wantCode: http.StatusOK,
		},
		"xml wins on explicit accept": {
			accept:   "application/xml",
			wantCT:   "application/xml",
			wantCode: http.StatusOK,
		},
		"quality ordering is honored": {
			accept:   "application/xml;q=0.5, application/json;q=0.9",
			wantCT:   "application/json",
			wantCode: http.StatusOK,
		},
		"no match is 406": {
			accept:   "application/msgpack",
			wantCode: http.StatusNotAcceptable,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := doGet(t, srv.URL+"/item", map[string]string{"Accept": tc.accept})
			assert.Equal(t, tc.wantCode, resp.StatusCode)
			if tc.wantCT != "" {
				assert.Equal(t, tc.wantCT, resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestRespond_pinned_content_type(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/robots.txt", func(_ context.Context, _ *rest.Void) (*string, error) {
		body := "User-agent: *\n"
		return &body, nil
	}, rest.WithContentType("text/plain"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/robots.txt", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *\n", string(raw))
}

func TestRespond_status_coder_and_error_mapping(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/teapot", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, rest.Error(http.StatusTeapot, "short and stout")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/teapot", nil)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var pb problemBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pb))
	assert.Equal(t, "short and stout", pb.Detail)
	assert.Equal(t, http.StatusTeapot, pb.Status)
}

func TestRespond_declared_response_type(t *testing.T) {
	t.Parallel()

	type account struct {
		Name   string `json:"name"`
		Secret string `json:"secret"`
	}
	type accountView struct {
		Name string `json:"name"`
	}

	r := rest.New()
	rest.Get(r, "/account", func(_ context.Context, _ *rest.Void) (*account, error) {
		return &account{Name: "ada", Secret: "hunter2"}, nil
	}, rest.WithResponseType[accountView]())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/account", map[string]string{"Accept": "application/json"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ada", got["name"])
	assert.NotContains(t, got, "secret")
}

func TestRespond_scalar_text_inference(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/motd", func(_ context.Context, _ *rest.Void) (*string, error) {
		s := "all systems nominal"
		return &s, nil
	})
	rest.Get(r, "/count", func(_ context.Context, _ *rest.Void) (*int, error) {
		n := 42
		return &n, nil
	})
	rest.Get(r, "/blob", func(_ context.Context, _ *rest.Void) (*[]byte, error) {
		b := []byte{0xde, 0xad}
		return &b, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Run("string without accept is plain text", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/motd", nil)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "all systems nominal", string(raw))
	})

	t.Run("number without accept is plain text", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/count", nil)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "42", string(raw))
	})

	t.Run("bytes without accept are octet-stream", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/blob", nil)
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad}, raw)
	})

	t.Run("explicit accept still negotiates", func(t *testing.T) {
		t.Parallel()

		resp := doGet(t, srv.URL+"/motd", map[string]string{"Accept": "application/json"})
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `"all systems nominal"`, strings.TrimSpace(string(raw)))
	})
}

func TestRespond_pinned_unregistered_type_keeps_header(t *testing.T) {
	t.Parallel()

	type widget struct {
		Name string `json:"name"`
	}

	r := rest.New()
	rest.Get(r, "/widget", func(_ context.Context, _ *rest.Void) (*widget, error) {
		return &widget{Name: "sprocket"}, nil
	}, rest.WithContentType("application/vnd.acme+json"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/widget", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.acme+json", resp.Header.Get("Content-Type"))

	var got widget
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, widget{Name: "sprocket"}, got)
}
