package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nvekas/rest"
)

func TestTimeout_deadline_reaches_handler(t *testing.T) {
	t.Parallel()

	r := rest.New()
	r.Use(rest.Timeout(30 * time.Millisecond))
	rest.Get(r, "/slow", func(ctx context.Context, _ *rest.Void) (*rest.Void, error) {
		select {
		case <-ctx.Done():
			return nil, rest.Error(http.StatusGatewayTimeout, "timed out")
		case <-time.After(time.Second):
			return nil, nil
		}
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/slow", nil)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}
