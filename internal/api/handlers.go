package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// maxBodyBytes bounds JSON request bodies; remote result pushes carry descriptions.
const maxBodyBytes = 8 << 20

type submitResultsRequest struct {
	Jobs       []jobs.ParsedJob `json:"jobs"`
	DurationMs int64            `json:"duration_ms"`
}

type updateStatusRequest struct {
	IDs    []string           `json:"ids"`
	Status jobs.ListingStatus `json:"status"`
}

type scoreRequest struct {
	ListingID string `json:"listing_id"`
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolQuery(r, "active", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	browserOnly, err := boolQuery(r, "browser_only", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companies, err := s.crawls.ListCompanies(r.Context(), chi.URLParam(r, "userID"), activeOnly, browserOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if companies == nil {
		companies = []jobs.Company{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (s *Server) crawlAll(w http.ResponseWriter, r *http.Request) {
	apiOnly, err := boolQuery(r, "api_only", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.crawls.CrawlAllCompanies(r.Context(), chi.URLParam(r, "userID"), apiOnly)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) crawlCompany(w http.ResponseWriter, r *http.Request) {
	res, err := s.crawls.CrawlCompany(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companyID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) submitResults(w http.ResponseWriter, r *http.Request) {
	var req submitResultsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DurationMs < 0 {
		writeError(w, http.StatusBadRequest, "duration_ms must be >= 0")
		return
	}
	duration := time.Duration(req.DurationMs) * time.Millisecond
	res, err := s.crawls.SubmitCrawlResults(r.Context(), chi.URLParam(r, "companyID"), req.Jobs, duration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) crawlLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	var companyID *string
	if cid := r.URL.Query().Get("company_id"); cid != "" {
		companyID = &cid
	}
	logs, err := s.crawls.GetCrawlLogs(r.Context(), chi.URLParam(r, "userID"), companyID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if logs == nil {
		logs = []jobs.CrawlLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	n, err := s.crawls.RecalculateMatchScores(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) updateListingStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	res, err := s.listings.UpdateStatus(r.Context(), chi.URLParam(r, "userID"), req.IDs, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) scoreListing(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ListingID == "" {
		writeError(w, http.StatusBadRequest, "listing_id required")
		return
	}
	res, err := s.crawls.ScoreListing(r.Context(), chi.URLParam(r, "userID"), req.ListingID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

func boolQuery(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return v, nil
}
