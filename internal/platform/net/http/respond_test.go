package http

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	perr "mural/internal/platform/errors"
	pnet "mural/internal/platform/net"
)

func doHandle(t *testing.T, resp Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(stdhttp.MethodGet, "/x", nil)
	Handle(func(*stdhttp.Request) Response { return resp })(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestRespondOKEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(stdhttp.MethodGet, "/x", nil)
	req = req.WithContext(pnet.WithRequest(req.Context(), "req-1"))

	RespondOK(rec, req, map[string]string{"k": "v"})

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	env := decodeEnvelope(t, rec)
	if env.StatusCode != 200 || env.Status != "OK" || env.RequestID != "req-1" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Error != "" || env.Code != 0 {
		t.Fatalf("success envelope must not carry an error: %+v", env)
	}
}

func TestRespondErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(stdhttp.MethodGet, "/x", nil)

	RespondError(rec, req, perr.Expiredf("note expired"))

	if rec.Code != stdhttp.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Code != perr.ErrorCodeExpired || env.Error != "note expired" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data != nil {
		t.Fatalf("error envelope must not carry data: %+v", env)
	}
}

func TestHandleStatuses(t *testing.T) {
	if rec := doHandle(t, OK("hi")); rec.Code != stdhttp.StatusOK {
		t.Fatalf("OK status = %d", rec.Code)
	}
	if rec := doHandle(t, Created("made")); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("Created status = %d", rec.Code)
	}

	rec := doHandle(t, NoContent())
	if rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("NoContent status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("204 must have an empty body, got %q", rec.Body.String())
	}

	// zero status defaults to 200
	if rec := doHandle(t, Response{Body: "x"}); rec.Code != stdhttp.StatusOK {
		t.Fatalf("zero status = %d", rec.Code)
	}
}

func TestHandleErrorBodyDerivesStatus(t *testing.T) {
	rec := doHandle(t, Error(perr.NotFoundf("no note")))
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Code != perr.ErrorCodeNotFound || env.Error != "no note" {
		t.Fatalf("envelope = %+v", env)
	}

	// unclassified errors land on 500
	rec = doHandle(t, Error(perr.Internalf("boom")))
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestBlobSkipsEnvelope(t *testing.T) {
	rec := doHandle(t, Blob("audio/webm", []byte{0x1a, 0x45, 0xdf, 0xa3}))
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/webm" {
		t.Fatalf("content type = %q", ct)
	}
	if got := rec.Body.Bytes(); len(got) != 4 || got[0] != 0x1a {
		t.Fatalf("raw body mangled: %v", got)
	}
}

func TestResponseHeadersPropagate(t *testing.T) {
	h := stdhttp.Header{}
	h.Set("X-Extra", "1")
	rec := doHandle(t, Response{Status: stdhttp.StatusOK, Body: "x", Header: h})
	if rec.Header().Get("X-Extra") != "1" {
		t.Fatal("custom header lost")
	}
}
