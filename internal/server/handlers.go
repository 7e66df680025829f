package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/filter"
	"github.com/flagged-dev/flagged/pkg/flagged"
	"github.com/flagged-dev/flagged/pkg/storage"
)

// maxWait caps the ?wait= parameter of the verdict endpoint.
const maxWait = 30 * time.Second

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("Writing response failed: %v", err)
	}
}

func (s *Server) withLock(ctx context.Context, fn func() error) error {
	if s.Lock == nil {
		return fn()
	}
	if err := s.Lock.Lock(ctx); err != nil {
		return err
	}
	defer s.Lock.Unlock()
	return fn()
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.Svc.Resolve(r.Context(), r.PathValue("handle"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

type PutRequest struct {
	Country *string `json:"country"`
}

func (s *Server) handleCachePut(w http.ResponseWriter, r *http.Request) {
	handle := filter.CanonicalHandle(r.PathValue("handle"))
	if handle == "" {
		http.Error(w, "empty handle", http.StatusBadRequest)
		return
	}
	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Country != nil && *req.Country == "" {
		req.Country = nil
	}
	writeJSON(w, s.Svc.Put(handle, req.Country))
}

func (s *Server) handleCacheEvict(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"evicted": s.Svc.Evict(r.PathValue("handle"))})
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	var staleAfter time.Duration
	if v := r.URL.Query().Get("stale_after"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		staleAfter = d
	}
	queued := s.Svc.Refetch(staleAfter)
	if queued == nil {
		queued = []string{}
	}
	writeJSON(w, map[string][]string{"queued": queued})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.Svc.Count(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]int{"count": n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	err := s.withLock(r.Context(), func() error { return s.Svc.Clear(r.Context()) })
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="flagged-export.json"`)
	if _, err := s.Svc.Export(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var res storage.ImportResult
	err := s.withLock(r.Context(), func() error {
		var err error
		res, err = s.Svc.Import(r.Context(), r.Body)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, res)
}

// handleVerdict answers from what is known. With ?wait=<duration> it waits
// that long for a pending lookup first.
func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	wait := r.URL.Query().Get("wait")
	if wait == "" {
		writeJSON(w, s.Svc.Check(r.Context(), handle))
		return
	}

	d, err := time.ParseDuration(wait)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d > maxWait {
		d = maxWait
	}
	ctx, cancel := context.WithTimeout(r.Context(), d)
	defer cancel()
	v, err := s.Svc.Await(ctx, handle)
	if err != nil && !errors.Is(err, flagged.ErrNotResolved) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Svc.Status())
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Svc.Settings())
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	settings := s.Svc.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Svc.UpdateSettings(settings))
}
