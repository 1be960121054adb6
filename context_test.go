package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvekas/rest"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	type tenant struct{ Name string }

	var got tenant
	var ok bool

	r := rest.New()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, rest.SetValue(req, tenant{Name: "acme"}))
		})
	})
	rest.Get(r, "/whoami", func(ctx context.Context, _ *rest.Void) (*rest.Void, error) {
		got, ok = rest.GetValue[tenant](ctx)
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/whoami", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, ok)
	assert.Equal(t, tenant{Name: "acme"}, got)
}

func TestContextValues_missing(t *testing.T) {
	t.Parallel()

	type missing struct{}

	_, ok := rest.GetValue[missing](context.Background())
	assert.False(t, ok)
}
