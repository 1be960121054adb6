package rest

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	json "github.com/goccy/go-json"
)

// CookieSetter is optionally implemented by response types to set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// HeaderSetter is optionally implemented by response types to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// Redirect is returned from a handler to issue an HTTP redirect.
type Redirect struct {
	URL    string
	Status int
}

// encodeResponse writes the handler's result. Fully-formed response
// objects (Redirect, Stream, SSEStream) carry their own status and
// content type, which win over anything set through the editor; the
// editor's headers and cookies are applied regardless. Plain values go
// through shaping and a negotiated encoder.
func encodeResponse(w http.ResponseWriter, r *http.Request, resp any, editor *ResponseEditor, ri *routeInfo, codecs *codecRegistry) {
	if rd, ok := resp.(*Redirect); ok {
		if editor != nil {
			editor.applyHeaders(w)
		}
		status := rd.Status
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, rd.URL, status)
		return
	}

	if s, ok := resp.(*Stream); ok {
		if editor != nil {
			editor.applyHeaders(w)
		}
		writeStream(w, s)
		return
	}

	if s, ok := resp.(*SSEStream); ok {
		if editor != nil {
			editor.applyHeaders(w)
		}
		writeSSEStream(w, s)
		return
	}

	if cs, ok := resp.(CookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	if hs, ok := resp.(HeaderSetter); ok {
		hs.SetHeaders(w.Header())
	}
	if editor != nil {
		editor.applyHeaders(w)
	}

	status := ri.status
	if editor != nil && editor.status != 0 {
		status = editor.status
	}
	if sc, ok := resp.(StatusCoder); ok {
		status = sc.StatusCode()
	}

	// A handler that built the body through the editor and returned no
	// value gets it written verbatim, no encode pass.
	if isVoidResponse(resp) {
		if editor != nil && editor.body != nil {
			ct := editor.contentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			w.Header().Set("Content-Type", ct)
			// The route's 204 default cannot carry the editor body; only
			// an explicit editor status overrides 200 here.
			if editor.status != 0 {
				w.WriteHeader(editor.status)
			} else {
				w.WriteHeader(http.StatusOK)
			}
			//nolint:errcheck,gosec // best-effort after WriteHeader
			w.Write(editor.body)
			return
		}
		writeStatus(w, status, http.StatusNoContent)
		return
	}

	// Content type resolution: editor override, then route declaration,
	// then Accept negotiation.
	contentType := ""
	if editor != nil && editor.contentType != "" {
		contentType = editor.contentType
	} else if ri.contentType != "" {
		contentType = ri.contentType
	}

	var enc Encoder
	if contentType != "" {
		enc = codecs.encoderFor(contentType)
		if enc == nil {
			// Unregistered content type: raw passthrough for byte and
			// string payloads, anything else falls back to JSON.
			if raw, ok := rawPayload(resp); ok {
				w.Header().Set("Content-Type", contentType)
				writeStatus(w, status, http.StatusOK)
				//nolint:errcheck,gosec // best-effort after WriteHeader
				w.Write(raw)
				return
			}
			enc = codecs.encoders[0]
		}
	} else {
		// No pinned type and no Accept preference: scalar payloads go
		// out as plain text, bytes as octet-stream, instead of being
		// JSON-quoted.
		if r.Header.Get("Accept") == "" {
			if raw, ct, ok := textPayload(resp); ok {
				w.Header().Set("Content-Type", ct)
				writeStatus(w, status, http.StatusOK)
				//nolint:errcheck,gosec // best-effort after WriteHeader
				w.Write(raw)
				return
			}
		}
		var ok bool
		enc, ok = codecs.negotiate(r.Header.Get("Accept"))
		if !ok {
			writeErrorResponse(w, Error(http.StatusNotAcceptable, "no encoder matches Accept header"))
			return
		}
	}

	if ri.respOverride {
		resp = reprojectResponse(resp, ri.respType)
	}
	payload := shape(resp, &ri.encodeOpts)

	// A pinned content type stays on the wire even when the encoder is
	// the JSON fallback for an unregistered type.
	ct := enc.ContentType()
	if contentType != "" {
		ct = contentType
	}
	w.Header().Set("Content-Type", ct)
	writeStatus(w, status, http.StatusOK)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, payload)
}

func writeStatus(w http.ResponseWriter, status, fallback int) {
	if status == 0 {
		status = fallback
	}
	w.WriteHeader(status)
}

func isVoidResponse(resp any) bool {
	if resp == nil {
		return true
	}
	if _, ok := resp.(*Void); ok {
		return true
	}
	return false
}

// reprojectResponse re-encodes resp through the route's declared wire
// type, so fields the declared view does not carry are dropped before
// shaping. Round-trip failures fall back to the original value.
func reprojectResponse(resp any, t reflect.Type) any {
	data, err := json.Marshal(resp)
	if err != nil {
		return resp
	}
	out := reflect.New(t)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return resp
	}
	return out.Interface()
}

// textPayload reports whether resp is a scalar that reads better as
// plain text than as a JSON document, along with its wire form.
func textPayload(resp any) ([]byte, string, bool) {
	if raw, ok := rawPayload(resp); ok {
		switch resp.(type) {
		case []byte, *[]byte:
			return raw, "application/octet-stream", true
		}
		return raw, "text/plain; charset=utf-8", true
	}

	v := reflect.ValueOf(resp)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, "", false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Appendf(nil, "%v", v.Interface()), "text/plain; charset=utf-8", true
	}
	return nil, "", false
}

func rawPayload(resp any) ([]byte, bool) {
	switch v := resp.(type) {
	case []byte:
		return v, true
	case *[]byte:
		return *v, true
	case string:
		return []byte(v), true
	case *string:
		return []byte(*v), true
	default:
		return nil, false
	}
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	status := ErrorStatus(err)

	var pd *ProblemDetail
	if errors.As(err, &pd) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(pd.Status)
		//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(pd)
		return
	}

	problem := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}
