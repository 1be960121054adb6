package rest_test

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvekas/rest"
)

// csvEncoder is a minimal custom encoder for registry tests.
type csvEncoder struct{}

func (csvEncoder) ContentType() string { return "text/csv" }

func (csvEncoder) Encode(w io.Writer, v any) error {
	rows, ok := v.(*[][]string)
	if !ok {
		return nil
	}
	return csv.NewWriter(w).WriteAll(*rows)
}

func TestEncode_custom_encoder_negotiated(t *testing.T) {
	t.Parallel()

	r := rest.New(rest.WithEncoder(csvEncoder{}))
	rest.Get(r, "/rows", func(_ context.Context, _ *rest.Void) (*[][]string, error) {
		return &[][]string{{"a", "b"}, {"1", "2"}}, nil
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doGet(t, srv.URL+"/rows", map[string]string{"Accept": "text/csv"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(raw))
}

// upperDecoder uppercases text payloads, standing in for a custom wire format.
type upperDecoder struct{}

func (upperDecoder) ContentType() string { return "application/json" }

func (upperDecoder) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func TestEncode_route_body_decoder_override(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}
	type Req struct {
		Body payload
	}
	type Resp struct {
		Name string `json:"name"`
	}

	r := rest.New()
	rest.Post(r, "/custom", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Name: req.Body.Name}, nil
	}, rest.WithBodyDecoder(upperDecoder{}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp := doPost(t, srv.URL+"/custom", "application/json", `{"name":"ada"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Resp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ada", body.Name)
}
