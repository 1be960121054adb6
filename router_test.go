package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvekas/rest"
)

func TestRouter_self_validator(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Post(r, "/transfers", func(_ context.Context, _ *transferReq) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Run("runs after binding", func(t *testing.T) {
		t.Parallel()

		resp := doPost(t, srv.URL+"/transfers", "application/json", `{"from":"a","to":"a"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("passes valid requests through", func(t *testing.T) {
		t.Parallel()

		resp := doPost(t, srv.URL+"/transfers", "application/json", `{"from":"a","to":"b"}`)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

type transferReq struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (r *transferReq) Validate() error {
	if r.From == r.To {
		return rest.Error(http.StatusUnprocessableEntity, "from and to must differ")
	}
	return nil
}

func TestRouter_global_validator(t *testing.T) {
	t.Parallel()

	r := rest.New(rest.WithValidator(rest.ValidatorFunc(func(any) error {
		return rest.Error(http.StatusForbidden, "rejected by policy")
	})))
	rest.Get(r, "/anything", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/anything", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_custom_error_handler(t *testing.T) {
	t.Parallel()

	r := rest.New(rest.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(rest.ErrorStatus(err))
		_, _ = w.Write([]byte("custom: " + err.Error()))
	}))
	rest.Get(r, "/fail", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, rest.Error(http.StatusBadGateway, "upstream down")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/fail", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestRouter_handler_panic_is_500(t *testing.T) {
	t.Parallel()

	r := rest.New()
	rest.Get(r, "/explode", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		panic("boom")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/explode", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var pb problemBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pb))
	assert.Contains(t, pb.Detail, "boom")
}

func TestRouter_validation_error_helper(t *testing.T) {
	t.Parallel()

	assert.False(t, rest.IsValidationError(errors.New("plain")))
	assert.False(t, rest.IsValidationError(rest.Error(http.StatusBadRequest, "nope")))
}

func TestGroup_prefix_tags_middleware(t *testing.T) {
	t.Parallel()

	var sawGroupMW bool
	groupMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawGroupMW = true
			next.ServeHTTP(w, r)
		})
	}

	r := rest.New(rest.WithTitle("t"), rest.WithVersion("1"))
	g := r.Group("/api/v1", rest.WithGroupTags("v1"), rest.WithGroupMiddleware(groupMW))
	rest.Get(g, "/users", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, nil
	})
	rest.Get(r, "/health", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/api/v1/users", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, sawGroupMW)

	// Group middleware does not leak onto router-level routes.
	sawGroupMW = false
	resp = doGet(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, sawGroupMW)

	spec := r.Spec()
	op, ok := spec.Paths["/api/v1/users"]["get"]
	require.True(t, ok)
	assert.Equal(t, []string{"v1"}, op.Tags)
}

func TestLifecycle_hooks(t *testing.T) {
	t.Parallel()

	t.Run("startup failure unwinds acquired releases", func(t *testing.T) {
		t.Parallel()

		var events []string

		r := rest.New()
		r.OnStartup(func(context.Context) (func(context.Context) error, error) {
			events = append(events, "start-a")
			return func(context.Context) error {
				events = append(events, "release-a")
				return nil
			}, nil
		})
		r.OnStartup(func(context.Context) (func(context.Context) error, error) {
			events = append(events, "start-b")
			return nil, errors.New("b failed")
		})

		err := r.ListenAndServe(context.Background(), "127.0.0.1:0")
		require.Error(t, err)
		assert.Equal(t, []string{"start-a", "start-b", "release-a"}, events)
	})

	t.Run("releases run in reverse on shutdown", func(t *testing.T) {
		t.Parallel()

		var events []string

		r := rest.New()
		for _, name := range []string{"a", "b"} {
			r.OnStartup(func(context.Context) (func(context.Context) error, error) {
				events = append(events, "start-"+name)
				return func(context.Context) error {
					events = append(events, "release-"+name)
					return nil
				}, nil
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- r.ListenAndServe(ctx, "127.0.0.1:0")
		}()

		// Give the server a moment to start, then shut down.
		cancel()
		require.NoError(t, <-done)

		assert.Equal(t, []string{"start-a", "start-b", "release-b", "release-a"}, events)
	})
}
