package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/store"
)

// DefaultScanLimit caps GET /api/scans when no limit is given.
const DefaultScanLimit = 100

// ScanHandler serves the scan history.
type ScanHandler struct {
	store *store.Store
}

// NewScanHandler creates a ScanHandler with the given store.
func NewScanHandler(s *store.Store) *ScanHandler {
	return &ScanHandler{store: s}
}

// ServeHTTP routes /api/scans and /api/scans/{id}.
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/scans")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type scanResponse struct {
	ID        string `json:"id"`
	Symbology string `json:"symbology"`
	Payload   string `json:"payload"`
	Camera    string `json:"camera"`
	FrameSeq  uint64 `json:"frame_seq"`
	ScannedAt string `json:"scanned_at"`
}

type listScansResponse struct {
	Scans []scanResponse `json:"scans"`
	Total int            `json:"total"`
}

func toScanResponse(s *store.Scan) scanResponse {
	return scanResponse{
		ID:        s.ID,
		Symbology: s.Symbology,
		Payload:   s.Payload,
		Camera:    s.Camera,
		FrameSeq:  s.FrameSeq,
		ScannedAt: s.ScannedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// list handles GET /api/scans?symbology=&limit=.
func (h *ScanHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := store.ScanFilter{Limit: DefaultScanLimit}

	q := r.URL.Query()
	if v := q.Get("symbology"); v != "" {
		sym, err := decoder.ParseSymbology(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Symbology = string(sym)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	scans, err := h.store.Scans().List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scans")
		return
	}
	total, err := h.store.Scans().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count scans")
		return
	}

	response := listScansResponse{
		Scans: make([]scanResponse, 0, len(scans)),
		Total: total,
	}
	for _, s := range scans {
		response.Scans = append(response.Scans, toScanResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/scans/{id}.
func (h *ScanHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Scans().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scan")
		return
	}
	writeJSON(w, http.StatusOK, toScanResponse(s))
}

// clear handles DELETE /api/scans.
func (h *ScanHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Scans().Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// delete handles DELETE /api/scans/{id}.
func (h *ScanHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Scans().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete scan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
