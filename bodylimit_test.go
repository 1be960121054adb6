package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvekas/rest"
)

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	type Req struct {
		Data []byte `body:"bytes"`
	}

	r := rest.New()
	r.Use(rest.BodyLimit(8))
	rest.Post(r, "/small", func(_ context.Context, _ *Req) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Run("allows bodies under the limit", func(t *testing.T) {
		t.Parallel()

		resp := doPost(t, srv.URL+"/small", "application/octet-stream", "ok")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("rejects bodies over the limit", func(t *testing.T) {
		t.Parallel()

		resp := doPost(t, srv.URL+"/small", "application/octet-stream", strings.Repeat("x", 64))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})
}

func TestBodyLimit_per_route_option(t *testing.T) {
	t.Parallel()

	type Req struct {
		Data []byte `body:"bytes"`
	}

	r := rest.New()
	rest.Post(r, "/capped", func(_ context.Context, _ *Req) (*rest.Void, error) {
		return nil, nil
	}, rest.WithBodyLimit(4))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doPost(t, srv.URL+"/capped", "application/octet-stream", "way too long")
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
