package rest

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// maxMultipartMemory is the maximum memory used for multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// matchesContentType reports whether a body variant accepts the given
// media type.
func matchesContentType(kind bodyKind, mediaType string) bool {
	switch kind {
	case bodyJSON, bodyJSONField:
		return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
	case bodyText:
		return strings.HasPrefix(mediaType, "text/")
	case bodyForm:
		return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
	case bodyBytes:
		return mediaType == "application/octet-stream"
	case bodyStream:
		return true
	default:
		return false
	}
}

// requestMediaType parses the declared Content-Type down to a media type.
func requestMediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mediaType
}

// readBody buffers the full payload once per request and caches it; every
// strategy except stream reads through here.
func (b *binder) readBody() ([]byte, error) {
	if b.bodyRead {
		return b.rawBody, b.bodyErr
	}
	b.bodyRead = true
	if b.r.Body == nil {
		return nil, nil
	}
	b.rawBody, b.bodyErr = io.ReadAll(b.r.Body)
	return b.rawBody, b.bodyErr
}

// bindBody selects the body variant matching the incoming Content-Type
// and runs its extraction strategy. When several variants are declared
// they are mutually exclusive; exactly one wins per request.
func (b *binder) bindBody() {
	p := b.plan
	if len(p.bodies) == 0 {
		return
	}

	mediaType := requestMediaType(b.r)
	hasPayload := b.r.ContentLength != 0

	if !hasPayload && mediaType == "" {
		b.bindAbsentBody()
		return
	}

	selected := b.selectVariant(mediaType)
	if selected == nil {
		first := &p.bodies[0]
		b.addErr(bodyOrder(first), FieldError{
			Source:  "body",
			Field:   first.alias,
			Message: "unsupported content type " + orEmpty(mediaType),
			Type:    errTypeContentType,
		})
		return
	}

	if selected.strict && mediaType != "" && !matchesContentType(selected.kind, mediaType) {
		b.addErr(bodyOrder(selected), FieldError{
			Source:  "body",
			Field:   selected.alias,
			Message: "expected content type " + selected.kind.String() + ", got " + mediaType,
			Type:    errTypeContentType,
		})
		return
	}

	switch selected.kind {
	case bodyJSON:
		b.bindJSONBody(selected)
	case bodyJSONField:
		b.bindJSONFields()
	case bodyText:
		b.bindTextBody(selected)
	case bodyBytes:
		b.bindBytesBody(selected)
	case bodyStream:
		b.bindStreamBody(selected)
	case bodyForm:
		b.bindFormBody(mediaType)
	}
}

// selectVariant matches the incoming media type against declared
// variants in declaration order. Stream is the wildcard of last resort;
// a sole non-strict variant is attempted even without a match, mirroring
// the permissive single-body behavior of an untyped request.
func (b *binder) selectVariant(mediaType string) *bodyDescriptor {
	bodies := b.plan.bodies

	if mediaType != "" {
		for i := range bodies {
			if bodies[i].kind != bodyStream && matchesContentType(bodies[i].kind, mediaType) {
				return &bodies[i]
			}
		}
		for i := range bodies {
			if bodies[i].kind == bodyStream {
				return &bodies[i]
			}
		}
		if b.singleVariant() && !bodies[0].strict {
			return &bodies[0]
		}
		return nil
	}

	// Payload without a declared Content-Type: JSON has always been the
	// default interpretation, then the untyped strategies.
	for _, kind := range []bodyKind{bodyJSON, bodyJSONField, bodyBytes, bodyStream} {
		for i := range bodies {
			if bodies[i].kind == kind {
				return &bodies[i]
			}
		}
	}
	if b.singleVariant() && !bodies[0].strict {
		return &bodies[0]
	}
	return nil
}

// singleVariant reports whether the plan declares exactly one body
// variant (named JSON fields count as one).
func (b *binder) singleVariant() bool {
	groups := 0
	sawJSONField := false
	for i := range b.plan.bodies {
		if b.plan.bodies[i].kind == bodyJSONField {
			if !sawJSONField {
				groups++
				sawJSONField = true
			}
			continue
		}
		groups++
	}
	return groups == 1
}

// bindAbsentBody applies the missing-value policy when no payload was
// sent at all: defaults apply wherever declared; a required variant is
// a missing-field error only when it had no alternative to lose to.
func (b *binder) bindAbsentBody() {
	bodies := b.plan.bodies
	single := b.singleVariant()

	allRequired := true
	for i := range bodies {
		bd := &bodies[i]
		field := b.bodyField(bd)

		if bd.hasDefault {
			allRequired = false
			if err := applyDefault(field, &bd.fieldDescriptor); err != nil {
				b.addErr(bodyOrder(bd), FieldError{
					Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeType,
				})
			}
			continue
		}
		if !bd.required {
			allRequired = false
			continue
		}
		if single || bd.kind == bodyJSONField {
			b.addErr(bodyOrder(bd), FieldError{
				Source: "body", Field: bd.alias, Message: "field required", Type: errTypeMissing,
			})
			allRequired = false
		}
	}

	if !single && allRequired && len(bodies) > 0 {
		first := &bodies[0]
		b.addErr(bodyOrder(first), FieldError{
			Source: "body", Field: first.alias, Message: "request body required", Type: errTypeMissing,
		})
	}
}

// bodyField resolves the target value for a body descriptor; index -1
// means the request struct itself is the target.
func (b *binder) bodyField(bd *bodyDescriptor) reflect.Value {
	if bd.index < 0 {
		return b.dest
	}
	return b.dest.Field(bd.index)
}

func bodyOrder(bd *bodyDescriptor) int {
	if bd.index < 0 {
		return 0
	}
	return bd.index
}

func orEmpty(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// bindJSONBody decodes a whole JSON payload into the variant's target.
// Struct targets are decoded field-by-field so one bad field does not
// reject its siblings.
func (b *binder) bindJSONBody(bd *bodyDescriptor) {
	raw, err := b.readBody()
	if err != nil {
		b.addErr(bodyOrder(bd), FieldError{
			Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeDecode,
		})
		return
	}

	field := b.bodyField(bd)
	if len(bytes.TrimSpace(raw)) == 0 {
		b.bindMissingBody(bd, field)
		return
	}

	if bd.decoder != nil {
		if err := bd.decoder.Decode(bytes.NewReader(raw), field.Addr().Interface()); err != nil {
			b.addErr(bodyOrder(bd), FieldError{
				Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeDecode,
			})
			return
		}
		b.checkBodyConstraints(field, "body", bodyOrder(bd))
		return
	}

	target := field
	if target.Kind() == reflect.Pointer {
		target.Set(reflect.New(target.Type().Elem()))
		target = target.Elem()
	}

	if target.Kind() == reflect.Struct && !plainDecoded(target.Type()) {
		b.decodeJSONStruct(raw, target, "body", bodyOrder(bd))
		return
	}

	if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
		b.addErr(bodyOrder(bd), FieldError{
			Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeDecode,
		})
	}
}

// bindJSONFields binds each named top-level JSON document field into its
// own target, independently validated.
func (b *binder) bindJSONFields() {
	raw, err := b.readBody()
	if err != nil {
		first := b.firstJSONField()
		b.addErr(bodyOrder(first), FieldError{
			Source: "body", Field: "body", Message: err.Error(), Type: errTypeDecode,
		})
		return
	}

	empty := len(bytes.TrimSpace(raw)) == 0
	if !empty && !gjson.ValidBytes(raw) {
		first := b.firstJSONField()
		b.addErr(bodyOrder(first), FieldError{
			Source: "body", Field: "body", Message: "invalid JSON", Type: errTypeDecode,
		})
		return
	}

	for i := range b.plan.bodies {
		bd := &b.plan.bodies[i]
		if bd.kind != bodyJSONField {
			continue
		}
		field := b.bodyField(bd)

		if empty {
			b.bindMissingBody(bd, field)
			continue
		}

		res := gjson.GetBytes(raw, escapeJSONPath(bd.alias))
		if !res.Exists() {
			b.bindMissingBody(bd, field)
			continue
		}

		path := "body." + bd.alias
		target := field
		if target.Kind() == reflect.Pointer {
			target.Set(reflect.New(target.Type().Elem()))
			target = target.Elem()
		}
		if target.Kind() == reflect.Struct && !plainDecoded(target.Type()) {
			b.decodeJSONStruct([]byte(res.Raw), target, path, bodyOrder(bd))
			continue
		}
		if err := json.Unmarshal([]byte(res.Raw), field.Addr().Interface()); err != nil {
			b.addErr(bodyOrder(bd), FieldError{
				Source: "body", Field: path, Message: invalidValueMsg(err), Type: errTypeType, Value: res.Value(),
			})
			continue
		}
		b.checkBodyConstraints(field, path, bodyOrder(bd))
	}
}

func (b *binder) firstJSONField() *bodyDescriptor {
	for i := range b.plan.bodies {
		if b.plan.bodies[i].kind == bodyJSONField {
			return &b.plan.bodies[i]
		}
	}
	return &b.plan.bodies[0]
}

// bindMissingBody is the absent-value policy for a selected body variant.
func (b *binder) bindMissingBody(bd *bodyDescriptor, field reflect.Value) {
	switch {
	case bd.hasDefault:
		if err := applyDefault(field, &bd.fieldDescriptor); err != nil {
			b.addErr(bodyOrder(bd), FieldError{
				Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeType,
			})
		}
	case bd.required:
		b.addErr(bodyOrder(bd), FieldError{
			Source: "body", Field: bd.alias, Message: "field required", Type: errTypeMissing,
		})
	}
}

// decodeJSONStruct binds a JSON object into a struct one field at a
// time: every field is extracted, decoded, and constraint-checked
// independently, so the aggregate error reports each bad field exactly
// once without rejecting the valid ones.
func (b *binder) decodeJSONStruct(raw []byte, dest reflect.Value, prefix string, order int) {
	if !gjson.ValidBytes(raw) {
		b.addErr(order, FieldError{
			Source: "body", Field: prefix, Message: "invalid JSON", Type: errTypeDecode,
		})
		return
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		if err := json.Unmarshal(raw, dest.Addr().Interface()); err != nil {
			b.addErr(order, FieldError{
				Source: "body", Field: prefix, Message: invalidValueMsg(err), Type: errTypeType,
			})
		}
		return
	}

	t := dest.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || isParamField(f) || f.Type == reflect.TypeFor[RawRequest]() {
			continue
		}
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		field := dest.Field(i)
		path := prefix + "." + name
		res := doc.Get(escapeJSONPath(name))

		if !res.Exists() {
			if f.Tag.Get("required") == "true" {
				b.addErr(order, FieldError{
					Source: "body", Field: path, Message: "field required", Type: errTypeMissing,
				})
				continue
			}
			if lit, ok := f.Tag.Lookup("default"); ok {
				if err := coerceScalar(field, lit); err != nil {
					b.addErr(order, FieldError{
						Source: "body", Field: path, Message: err.Error(), Type: errTypeType,
					})
				}
			}
			continue
		}

		target := field
		if target.Kind() == reflect.Pointer {
			target.Set(reflect.New(target.Type().Elem()))
			target = target.Elem()
		}
		if target.Kind() == reflect.Struct && !plainDecoded(target.Type()) {
			b.decodeJSONStruct([]byte(res.Raw), target, path, order)
			continue
		}

		if err := json.Unmarshal([]byte(res.Raw), field.Addr().Interface()); err != nil {
			b.addErr(order, FieldError{
				Source: "body", Field: path, Message: invalidValueMsg(err), Type: errTypeType, Value: res.Value(),
			})
			continue
		}

		// Malformed constraint tags were rejected at registration.
		cons, _ := parseConstraints(f.Tag)
		if fe := checkValueConstraints(&cons, field, ""); fe != nil {
			fe.Source = "body"
			fe.Field = path
			b.addErr(order, *fe)
		}
	}
}

// checkBodyConstraints walks a decoded body value and reports constraint
// violations with dotted location paths.
func (b *binder) checkBodyConstraints(v reflect.Value, prefix string, order int) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || plainDecoded(v.Type()) {
		return
	}

	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}
		path := prefix + "." + name

		cons, _ := parseConstraints(f.Tag)
		if fe := checkValueConstraints(&cons, v.Field(i), ""); fe != nil {
			fe.Source = "body"
			fe.Field = path
			b.addErr(order, *fe)
		}

		if v.Field(i).Kind() == reflect.Struct {
			b.checkBodyConstraints(v.Field(i), path, order)
		}
	}
}

// plainDecoded marks struct types that decode as single JSON values
// rather than objects with per-field semantics.
func plainDecoded(t reflect.Type) bool {
	if t == timeType || t == uuidType {
		return true
	}
	return reflect.PointerTo(t).Implements(reflect.TypeFor[json.Unmarshaler]())
}

func invalidValueMsg(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return "expected " + ute.Type.String() + ", got " + ute.Value
	}
	return err.Error()
}

// escapeJSONPath escapes gjson path metacharacters in a literal key.
func escapeJSONPath(key string) string {
	if !strings.ContainsAny(key, ".*?\\|@") {
		return key
	}
	var sb strings.Builder
	for _, r := range key {
		if strings.ContainsRune(".*?\\|@", r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// bindTextBody reads the payload as text and coerces it to the declared
// scalar target.
func (b *binder) bindTextBody(bd *bodyDescriptor) {
	raw, err := b.readBody()
	if err != nil {
		b.addErr(bodyOrder(bd), FieldError{
			Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeDecode,
		})
		return
	}
	field := b.bodyField(bd)
	if len(raw) == 0 {
		b.bindMissingBody(bd, field)
		return
	}
	if fe := coerceInto(field, &bd.fieldDescriptor, []string{string(raw)}); fe != nil {
		b.fail(&bd.fieldDescriptor, fe)
	}
}

// bindBytesBody reads the full payload into a []byte target.
func (b *binder) bindBytesBody(bd *bodyDescriptor) {
	raw, err := b.readBody()
	if err != nil {
		b.addErr(bodyOrder(bd), FieldError{
			Source: "body", Field: bd.alias, Message: err.Error(), Type: errTypeDecode,
		})
		return
	}
	field := b.bodyField(bd)
	if len(raw) == 0 {
		if bd.hasDefault && bd.defaultFn == nil {
			field.SetBytes([]byte(bd.defaultLit))
			return
		}
		b.bindMissingBody(bd, field)
		return
	}
	field.SetBytes(raw)
}

// bindStreamBody hands the live request body to the handler without
// buffering. The server closes the reader when the connection ends, so
// a dropped client surfaces as a read error and no partially-read
// resource outlives the request.
func (b *binder) bindStreamBody(bd *bodyDescriptor) {
	field := b.bodyField(bd)
	field.Set(reflect.ValueOf(BodyStream{
		Reader:        b.r.Body,
		ContentType:   b.r.Header.Get("Content-Type"),
		ContentLength: b.r.ContentLength,
	}))
}

// bindFormBody parses urlencoded or multipart payloads and binds the
// declared form fields one by one, files included.
func (b *binder) bindFormBody(mediaType string) {
	var getValues func(alias string) []string

	if mediaType == "multipart/form-data" {
		if err := b.r.ParseMultipartForm(maxMultipartMemory); err != nil {
			b.addErr(0, FieldError{
				Source: "body", Field: "form", Message: err.Error(), Type: errTypeDecode,
			})
			return
		}
		getValues = func(alias string) []string { return b.r.MultipartForm.Value[alias] }
	} else {
		if err := b.r.ParseForm(); err != nil {
			b.addErr(0, FieldError{
				Source: "body", Field: "form", Message: err.Error(), Type: errTypeDecode,
			})
			return
		}
		getValues = func(alias string) []string { return b.r.PostForm[alias] }
	}

	for i := range b.plan.formFields {
		d := &b.plan.formFields[i]
		field := b.dest.Field(d.index)

		if d.typ == reflect.TypeFor[FileUpload]() || d.typ == reflect.TypeFor[[]FileUpload]() {
			b.bindFileField(d, field)
			continue
		}

		b.bindOne(d, field, getValues(d.alias))
	}
}

// bindFileField binds single or repeated multipart file fields.
func (b *binder) bindFileField(d *fieldDescriptor, field reflect.Value) {
	if b.r.MultipartForm == nil {
		if d.required {
			b.fail(d, &FieldError{Message: "file required", Type: errTypeMissing})
		}
		return
	}
	headers := b.r.MultipartForm.File[d.alias]
	if len(headers) == 0 {
		if d.required {
			b.fail(d, &FieldError{Message: "file required", Type: errTypeMissing})
		}
		return
	}

	if d.typ == reflect.TypeFor[FileUpload]() {
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			b.fail(d, &FieldError{Message: err.Error(), Type: errTypeDecode})
			return
		}
		field.Set(reflect.ValueOf(FileUpload{
			Filename: header.Filename,
			Size:     header.Size,
			Header:   header,
			file:     file,
		}))
		return
	}

	uploads := make([]FileUpload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			b.fail(d, &FieldError{Message: err.Error(), Type: errTypeDecode})
			return
		}
		uploads = append(uploads, FileUpload{
			Filename: header.Filename,
			Size:     header.Size,
			Header:   header,
			file:     file,
		})
	}
	field.Set(reflect.ValueOf(uploads))
}
