// Package http exposes the board endpoints
package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"mural/internal/modkit/httpkit"
	perr "mural/internal/platform/errors"
	"mural/internal/platform/net/http/bind"
	"mural/internal/services/board/domain"
)

// memory threshold for multipart parsing, larger parts spill to temp files
const multipartMemory = 256 << 10

// Deps are the handler dependencies
type Deps struct {
	Ingest          domain.IngestPort
	Reader          domain.ReaderPort
	MaxPayloadBytes int64
}

type handlers struct {
	deps Deps
}

// Register mounts the board routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	r.Post("/notes", httpkit.Handle(h.submit))
	r.Get("/notes", httpkit.Handle(h.snapshot))
	r.Get("/notes/{id}/audio", httpkit.Handle(h.audio))
	r.Post("/notes/{id}/responses", httpkit.Handle(h.respond))
}

// NoteView is the wire shape of a live note
type NoteView struct {
	ID         string         `json:"id"`
	ColorIndex int            `json:"color_index"`
	Format     string         `json:"format"`
	SizeBytes  int64          `json:"size_bytes"`
	OriginTag  string         `json:"origin,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	PayloadRef string         `json:"payload_ref"`
	Responses  []ResponseView `json:"responses"`
}

// ResponseView is the wire shape of a response
type ResponseView struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	Format     string    `json:"format"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	PayloadRef string    `json:"payload_ref"`
}

// PayloadRef is the audio fetch path for a note or response id
func PayloadRef(id string) string { return "/api/v1/board/notes/" + id + "/audio" }

// ViewOf maps a domain note to its wire shape
func ViewOf(n domain.Note) NoteView {
	v := NoteView{
		ID:         n.ID,
		ColorIndex: n.ColorIndex,
		Format:     n.Format,
		SizeBytes:  n.SizeBytes,
		OriginTag:  n.OriginTag,
		CreatedAt:  n.CreatedAt,
		ExpiresAt:  n.ExpiresAt,
		PayloadRef: PayloadRef(n.ID),
		Responses:  make([]ResponseView, 0, len(n.Responses)),
	}
	for _, r := range n.Responses {
		v.Responses = append(v.Responses, ResponseViewOf(r))
	}
	return v
}

// ResponseViewOf maps a domain response to its wire shape
func ResponseViewOf(r domain.Response) ResponseView {
	return ResponseView{
		ID:         r.ID,
		ParentID:   r.ParentID,
		Format:     r.Format,
		SizeBytes:  r.SizeBytes,
		CreatedAt:  r.CreatedAt,
		PayloadRef: PayloadRef(r.ID),
	}
}

// originForm carries the optional origin hint alongside the audio part
type originForm struct {
	Origin string `json:"origin" validate:"omitempty,max=120"`
}

func (h *handlers) submit(r *http.Request) httpkit.Response {
	in, err := h.parseUpload(r)
	if err != nil {
		return httpkit.Error(err)
	}
	n, err := h.deps.Ingest.Publish(r.Context(), in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Created(ViewOf(n))
}

func (h *handlers) respond(r *http.Request) httpkit.Response {
	in, err := h.parseUpload(r)
	if err != nil {
		return httpkit.Error(err)
	}
	resp, err := h.deps.Ingest.Respond(r.Context(), httpkit.Param(r, "id"), in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Created(ResponseViewOf(resp))
}

func (h *handlers) snapshot(r *http.Request) httpkit.Response {
	notes, err := h.deps.Reader.Snapshot(r.Context())
	if err != nil {
		return httpkit.Error(err)
	}
	views := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, ViewOf(n))
	}
	return httpkit.OK(views)
}

func (h *handlers) audio(r *http.Request) httpkit.Response {
	b, format, err := h.deps.Reader.Audio(r.Context(), httpkit.Param(r, "id"))
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Blob(format, b)
}

// parseUpload reads the multipart body: an "audio" file part plus an
// optional "origin" field, size-checked at the transport boundary too
func (h *handlers) parseUpload(r *http.Request) (domain.SubmitInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return domain.SubmitInput{}, perr.WithField(
			perr.Validationf("multipart form required"), "audio")
	}
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		return domain.SubmitInput{}, perr.WithField(
			perr.Validationf("audio file part required"), "audio")
	}
	defer func() { _ = f.Close() }()

	form := originForm{Origin: strings.TrimSpace(r.FormValue("origin"))}
	if err := bind.Struct(form); err != nil {
		return domain.SubmitInput{}, err
	}

	payload, err := io.ReadAll(io.LimitReader(f, h.deps.MaxPayloadBytes+1))
	if err != nil {
		return domain.SubmitInput{}, perr.Wrap(err, perr.ErrorCodeValidation, "audio part unreadable")
	}
	if int64(len(payload)) > h.deps.MaxPayloadBytes {
		return domain.SubmitInput{}, perr.WithField(
			perr.Validationf("audio payload exceeds %d bytes", h.deps.MaxPayloadBytes), "audio")
	}

	return domain.SubmitInput{
		Payload:   payload,
		Format:    hdr.Header.Get("Content-Type"),
		OriginTag: form.Origin,
	}, nil
}
