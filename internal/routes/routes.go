// Package routes serves the reviewer HTTP API over one moderation queue.
package routes

const (
	HCType        = "Content-Type"
	HCacheControl = "Cache-Control"
	HETag         = "ETag"
	HIfNoneMatch  = "If-None-Match"
	HVary         = "Vary"

	HAcceptEncoding  = "Accept-Encoding"
	HContentEncoding = "Content-Encoding"

	CTypeJSON    = "application/json"
	CTypeGeoJSON = "application/geo+json"
	CTypeSSE     = "text/event-stream"

	HTTPErrMethodNotAllowed = "Method not allowed"
)

// API Routes
const (
	// Queue
	APIItems       = "GET /api/items"
	APIItemSelect  = "POST /api/items/{id}/select"
	APIItemApprove = "POST /api/items/{id}/approve"
	APIItemReject  = "POST /api/items/{id}/reject"
	APIReload      = "POST /api/reload"

	// Position editor of the selected item
	APIEditor       = "GET /api/editor"
	APIEditorEdit   = "POST /api/editor/edit"
	APIEditorPick   = "POST /api/editor/pick"
	APIEditorSave   = "POST /api/editor/save"
	APIEditorCancel = "POST /api/editor/cancel"

	// Published export
	APIPublishedGeoJSON = "GET /api/published.geojson"

	// SSE
	SSEPath = "GET /sse"

	// Metrics
	MetricsPath = "GET /metrics"
)

// SSE event name for queue changes.
const EventQueue = "queue"
