package rest_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvekas/rest"
)

func TestPlan_classification(t *testing.T) {
	t.Parallel()

	type Filters struct {
		Sort  string `query:"sort"`
		Order string `query:"order" default:"asc"`
	}
	type Req struct {
		ID      string            `path:"id"`
		Limit   int               `query:"limit" default:"20"`
		Auth    string            `header:"Authorization,required"`
		Session string            `cookie:"session"`
		Filters Filters           `query:"*"`
		Meta    map[string]string `header:"*"`
		Raw     rest.RawRequest
		Body    struct {
			Name string `json:"name"`
		}
	}

	shape, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "limit", "Authorization", "session", "Filters", "Meta"}, shape.ParamAliases)
	assert.Equal(t, []string{"json"}, shape.BodyKinds)
	assert.Empty(t, shape.FormAliases)
	assert.Equal(t, 1, shape.Injections)
}

func TestPlan_whole_struct_is_json_body(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	shape, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)

	assert.Empty(t, shape.ParamAliases)
	assert.Equal(t, []string{"json"}, shape.BodyKinds)
}

func TestPlan_multiple_json_bodies_become_fields(t *testing.T) {
	t.Parallel()

	type User struct {
		Name string `json:"name"`
	}
	type Meta struct {
		Tag string `json:"tag"`
	}
	type Req struct {
		User User `body:"json" json:"user"`
		Meta Meta `body:"json" json:"meta"`
	}

	shape, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)

	assert.Equal(t, []string{"json-field", "json-field"}, shape.BodyKinds)
}

func TestPlan_form_fields_build_one_variant(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name string          `form:"name"`
		File rest.FileUpload `form:"file"`
	}

	shape, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "file"}, shape.FormAliases)
	assert.Equal(t, []string{"form"}, shape.BodyKinds)
}

func TestPlan_compiles_identically(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"20" maximum:"100"`
		Body  struct {
			Name string `json:"name" required:"true"`
		}
	}

	first, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)
	second, err := rest.CompilePlanShape(reflect.TypeFor[Req]())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlan_registration_errors(t *testing.T) {
	t.Parallel()

	type pathDefault struct {
		ID string `path:"id" default:"x"`
	}
	type multiSource struct {
		V string `query:"v" header:"v"`
	}
	type requiredAndDefault struct {
		V string `query:"v,required" default:"x"`
	}
	type badBytes struct {
		Data string `body:"bytes"`
	}
	type badStream struct {
		S string `body:"stream"`
	}
	type streamDefault struct {
		S rest.BodyStream `body:"stream" default:"x"`
	}
	type duplicateText struct {
		A string `body:"text"`
		B string `body:"text"`
	}
	type badConstraint struct {
		N int `query:"n" minimum:"abc"`
	}
	type badDefaultLit struct {
		N int `query:"n" default:"notanumber"`
	}
	type badNovalidate struct {
		N int `query:"n,novalidate"`
	}
	type badExtractAll struct {
		M map[string]int `query:"*"`
	}
	type unknownBodyKind struct {
		B string `body:"csv"`
	}
	type badBodyFieldConstraint struct {
		Body struct {
			Code string `json:"code" pattern:"["`
		}
	}
	type badNestedBodyConstraint struct {
		Body struct {
			Inner struct {
				N int `json:"n" maximum:"lots"`
			} `json:"inner"`
		}
	}
	type badImplicitBodyConstraint struct {
		Name string `json:"name" minLength:"x"`
	}

	tests := map[string]struct {
		typ     reflect.Type
		wantErr string
	}{
		"path parameter with default":   {reflect.TypeFor[pathDefault](), "cannot declare a default"},
		"multiple source tags":          {reflect.TypeFor[multiSource](), "multiple binding tags"},
		"required and default":          {reflect.TypeFor[requiredAndDefault](), "mutually exclusive"},
		"bytes body wrong target":       {reflect.TypeFor[badBytes](), "must be []byte"},
		"stream body wrong target":      {reflect.TypeFor[badStream](), "must be rest.BodyStream"},
		"stream body with default":      {reflect.TypeFor[streamDefault](), "cannot declare a default"},
		"duplicate text variants":       {reflect.TypeFor[duplicateText](), "both declare a text body"},
		"malformed constraint value":    {reflect.TypeFor[badConstraint](), "constraint minimum"},
		"invalid default literal":       {reflect.TypeFor[badDefaultLit](), "invalid default"},
		"novalidate on non-string":      {reflect.TypeFor[badNovalidate](), "novalidate target"},
		"extract-all non-string values": {reflect.TypeFor[badExtractAll](), "extract-all target"},
		"unknown body kind":             {reflect.TypeFor[unknownBodyKind](), "unknown body kind"},
		"malformed body field pattern":  {reflect.TypeFor[badBodyFieldConstraint](), "constraint pattern"},
		"malformed nested body bound":   {reflect.TypeFor[badNestedBodyConstraint](), "constraint maximum"},
		"malformed implicit body tag":   {reflect.TypeFor[badImplicitBodyConstraint](), "constraint minLength"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := rest.CompilePlanErr(tc.typ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestPlan_registration_panics_at_route_setup(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID string `path:"id" default:"x"`
	}

	r := rest.New()
	assert.Panics(t, func() {
		rest.Get(r, "/items/{id}", func(_ context.Context, _ *Req) (*rest.Void, error) {
			return nil, nil
		})
	})
}

func TestPlan_default_func_errors(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"20"`
	}

	tests := map[string]rest.RouteOption{
		"unknown field":       rest.WithDefaultFunc("Nope", func() any { return 1 }),
		"path parameter":      rest.WithDefaultFunc("ID", func() any { return "x" }),
		"already has default": rest.WithDefaultFunc("Limit", func() any { return 1 }),
	}

	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := rest.New()
			assert.Panics(t, func() {
				rest.Get(r, "/items/{id}", func(_ context.Context, _ *Req) (*rest.Void, error) {
					return nil, nil
				}, opt)
			})
		})
	}
}

func TestMatchesContentType(t *testing.T) {
	t.Parallel()

	jsonKind, ok := rest.BodyKindString("json")
	require.True(t, ok)
	textKind, _ := rest.BodyKindString("text")
	formKind, _ := rest.BodyKindString("form")
	bytesKind, _ := rest.BodyKindString("bytes")

	assert.True(t, rest.MatchesContentType(jsonKind, "application/json"))
	assert.True(t, rest.MatchesContentType(jsonKind, "application/vnd.example+json"))
	assert.False(t, rest.MatchesContentType(jsonKind, "text/plain"))
	assert.True(t, rest.MatchesContentType(textKind, "text/plain"))
	assert.True(t, rest.MatchesContentType(formKind, "application/x-www-form-urlencoded"))
	assert.True(t, rest.MatchesContentType(formKind, "multipart/form-data"))
	assert.True(t, rest.MatchesContentType(bytesKind, "application/octet-stream"))
}
