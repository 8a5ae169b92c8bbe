package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/editor"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/queue"
	"github.com/debemdeboas/locs-review/internal/sse"
	"github.com/debemdeboas/locs-review/internal/util"
	"github.com/debemdeboas/locs-review/internal/util/compression"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

var routesLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	routesLogger = l
}

// PublishedLister lists published items for the GeoJSON export.
type PublishedLister interface {
	ListPublished(ctx context.Context) ([]model.PublishedItem, error)
}

type Handler struct {
	queue     *queue.Queue
	published PublishedLister
	urls      queue.URLResolver
	layout    blob.Layout
	clients   *sse.SSEClients
}

func NewHandler(q *queue.Queue, published PublishedLister, urls queue.URLResolver, layout blob.Layout, clients *sse.SSEClients) *Handler {
	return &Handler{
		queue:     q,
		published: published,
		urls:      urls,
		layout:    layout,
		clients:   clients,
	}
}

// Register mounts every API route on mux. metrics may be nil.
func (h *Handler) Register(mux *http.ServeMux, metrics http.Handler) {
	mux.HandleFunc(APIItems, h.serveItems)
	mux.HandleFunc(APIItemSelect, h.serveSelect)
	mux.HandleFunc(APIItemApprove, h.serveApprove)
	mux.HandleFunc(APIItemReject, h.serveReject)
	mux.HandleFunc(APIReload, h.serveReload)

	mux.HandleFunc(APIEditor, h.serveEditor)
	mux.HandleFunc(APIEditorEdit, h.editorAction(h.queue.EnterEdit))
	mux.HandleFunc(APIEditorSave, h.editorAction(h.queue.Save))
	mux.HandleFunc(APIEditorCancel, h.editorAction(h.queue.Cancel))
	mux.HandleFunc(APIEditorPick, h.servePick)

	mux.HandleFunc(APIPublishedGeoJSON, h.servePublished)
	mux.HandleFunc(SSEPath, h.serveEvents)

	if metrics != nil {
		mux.Handle(MetricsPath, metrics)
	}
}

// Notify forwards a queue event to connected reviewers.
func (h *Handler) Notify(ev queue.Event) {
	if h.clients == nil {
		return
	}
	if err := h.clients.BroadcastJSON(EventQueue, ev); err != nil {
		routesLogger.Error().Err(err).Msg("Failed to broadcast queue event")
	}
}

type editorView struct {
	State     string           `json:"state"`
	Committed model.Coordinate `json:"committed"`
	Tentative model.Coordinate `json:"tentative"`
	Position  model.Coordinate `json:"position"`
}

func newEditorView(e editor.PositionEditor) editorView {
	return editorView{
		State:     e.State().String(),
		Committed: e.Committed(),
		Tentative: e.Tentative(),
		Position:  e.Position(),
	}
}

type queueView struct {
	Items    []queue.Item `json:"items"`
	Selected *queue.Item  `json:"selected"`
	Editor   *editorView  `json:"editor"`
}

type decisionView struct {
	Report  *workflow.Report `json:"report,omitempty"`
	Removed bool             `json:"removed"`
	Warning string           `json:"warning,omitempty"`
	Error   string           `json:"error,omitempty"`
	Retry   bool             `json:"retry,omitempty"`
}

func (h *Handler) queueView() queueView {
	v := queueView{Items: h.queue.Items()}
	if sel, ok := h.queue.Selected(); ok {
		v.Selected = &sel
		if e, ok := h.queue.Editor(); ok {
			ev := newEditorView(e)
			v.Editor = &ev
		}
	}
	return v
}

func (h *Handler) serveItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queueView())
}

func (h *Handler) serveSelect(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Select(model.ItemID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.queueView())
}

func (h *Handler) serveReload(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Load(r.Context()); err != nil {
		routesLogger.Error().Err(err).Msg("Failed to reload queue")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.queueView())
}

func (h *Handler) serveEditor(w http.ResponseWriter, r *http.Request) {
	e, ok := h.queue.Editor()
	if !ok {
		writeError(w, queue.ErrNoSelection)
		return
	}
	writeJSON(w, http.StatusOK, newEditorView(e))
}

func (h *Handler) editorAction(fn func() (editor.PositionEditor, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := fn()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newEditorView(e))
	}
}

func (h *Handler) servePick(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := h.queue.Pick(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEditorView(e))
}

func (h *Handler) serveApprove(w http.ResponseWriter, r *http.Request) {
	id := model.ItemID(r.PathValue("id"))
	report, err := h.queue.Approve(r.Context(), id)
	h.writeDecision(w, report, err)
}

func (h *Handler) serveReject(w http.ResponseWriter, r *http.Request) {
	id := model.ItemID(r.PathValue("id"))
	report, err := h.queue.Reject(r.Context(), id)
	h.writeDecision(w, report, err)
}

func (h *Handler) writeDecision(w http.ResponseWriter, report *workflow.Report, err error) {
	v := decisionView{Report: report, Removed: workflow.ItemRemoved(err)}

	switch {
	case err == nil:
		if report != nil && report.AlreadyPublished() {
			v.Warning = "item was already published"
		}
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, workflow.ErrCleanupIncomplete):
		v.Warning = err.Error()
		writeJSON(w, http.StatusOK, v)
	default:
		v.Error = err.Error()
		v.Retry = errors.Is(err, workflow.ErrInconsistentState)
		writeJSON(w, StatusFor(err), v)
	}
}

func (h *Handler) servePublished(w http.ResponseWriter, r *http.Request) {
	items, err := h.published.ListPublished(r.Context())
	if err != nil {
		routesLogger.Error().Err(err).Msg("Failed to list published items")
		writeError(w, err)
		return
	}

	data, err := PublishedCollection(items, h.urls, h.layout).MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	etag := util.ETag(data)
	w.Header().Set(HCacheControl, "no-cache")
	w.Header().Set(HETag, etag)
	w.Header().Set(HVary, HAcceptEncoding)
	if util.MatchesETag(r.Header.Get(HIfNoneMatch), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if c := compression.Negotiate(r.Header.Get(HAcceptEncoding)); c != nil {
		if compressed, err := c.Compress(data); err == nil {
			w.Header().Set(HContentEncoding, c.Encoding())
			data = compressed
		} else {
			routesLogger.Warn().Err(err).Str("encoding", c.Encoding()).Msg("Failed to compress response, sending identity")
		}
	}

	w.Header().Set(HCType, CTypeGeoJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(HCType, CTypeSSE)
	w.Header().Set(HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	sse.Message{Event: "connected", Data: "SSE connection established"}.WriteTo(w)
	flusher.Flush()

	client := sse.NewClient(16)
	h.clients.Add(client)
	routesLogger.Debug().Int("clients", h.clients.Len()).Msg("SSE client connected")

	defer func() {
		h.clients.Delete(client)
		routesLogger.Debug().Msg("SSE client disconnected")
	}()

	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			msg.WriteTo(w)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// StatusFor maps an error onto the HTTP status a reviewer client acts on.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case workflow.IsValidation(err), errors.Is(err, errBadCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrNotQueued):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrNoSelection), errors.Is(err, workflow.ErrInconsistentState):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

var errBadCoordinate = errors.New("lat and lng must be numbers")

func parseCoordinate(r *http.Request) (model.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.FormValue("lat"), 64)
	if err != nil {
		return model.Coordinate{}, errBadCoordinate
	}
	lng, err := strconv.ParseFloat(r.FormValue("lng"), 64)
	if err != nil {
		return model.Coordinate{}, errBadCoordinate
	}
	c := model.Coordinate{Lat: lat, Lng: lng}
	if err := c.Validate(); err != nil {
		return model.Coordinate{}, err
	}
	return c, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(HCType, CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		routesLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
}

// SecureHeaders sets the static security headers on every response.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set(HCacheControl, "no-cache")
		next.ServeHTTP(w, r)
	})
}
