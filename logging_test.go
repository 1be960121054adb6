package rest_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvekas/rest"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := rest.New()
	r.Use(rest.RequestID(), rest.Logger(logger))
	rest.Get(r, "/logged", func(_ context.Context, _ *rest.Void) (*rest.Void, error) {
		return nil, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/logged", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request"`)
	assert.Contains(t, out, `"method":"GET"`)
	assert.Contains(t, out, `"path":"/logged"`)
	assert.Contains(t, out, `"status":204`)
	assert.Contains(t, out, `"request_id"`)
}
