package server

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"goalgazer/internal/article"
	"goalgazer/internal/render"
	"goalgazer/internal/schema"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the /api/status body.
type StatusResponse struct {
	Uptime   string `json:"uptime"`
	Articles int    `json:"articles"`
	Database bool   `json:"database"`
}

// MatchList is the /api/matches body.
type MatchList struct {
	Data  []article.IndexEntry `json:"data"`
	Total int                  `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if _, err := article.ReadIndex(s.opts.ContentDir); err != nil {
		checks["content"] = "error"
		healthy = false
	} else {
		checks["content"] = "ok"
	}

	if s.opts.DB != nil {
		if err := s.opts.DB.Ping(r.Context()); err != nil {
			checks["database"] = "error"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if !healthy {
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entries, _ := article.ReadIndex(s.opts.ContentDir)
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Articles: len(entries),
		Database: s.opts.DB != nil,
	})
}

// handleListMatches handles GET /api/matches?league=&team=&limit=
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	entries, err := article.ReadIndex(s.opts.ContentDir)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read content index")
		s.respondError(w, http.StatusInternalServerError, "content index unavailable")
		return
	}

	q := r.URL.Query()
	league := strings.ToLower(q.Get("league"))
	team := strings.ToLower(q.Get("team"))
	out := []article.IndexEntry{}
	for _, e := range entries {
		if league != "" && strings.ToLower(e.League) != league {
			continue
		}
		if team != "" && !hasTeam(e.Teams, team) {
			continue
		}
		out = append(out, e)
	}
	total := len(out)

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < len(out) {
			out = out[:limit]
		}
	}
	s.respondJSON(w, http.StatusOK, MatchList{Data: out, Total: total})
}

// handleGetMatch handles GET /api/matches/{slug}
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}

	locate := func() (string, error) { return article.LocateSlug(s.opts.ContentDir, slug) }
	if lang != "en" {
		locate = func() (string, error) { return article.LocateTranslation(s.opts.ContentDir, slug, lang) }
	}

	if path, err := locate(); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to read article")
			s.respondError(w, http.StatusInternalServerError, "failed to read article")
			return
		}
		s.respondRaw(w, data)
		return
	} else if !errors.Is(err, article.ErrNotFound) {
		s.respondError(w, http.StatusInternalServerError, "content index unavailable")
		return
	}

	if s.opts.Store != nil {
		if data, err := s.opts.Store.GetBySlug(r.Context(), slug, lang); err == nil {
			s.respondRaw(w, data)
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "match not found")
}

// handleMatchPage handles GET /matches/{slug} with a minimal HTML rendering.
func (s *Server) handleMatchPage(w http.ResponseWriter, r *http.Request) {
	path, err := article.LocateSlug(s.opts.ContentDir, chi.URLParam(r, "slug"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	doc, err := article.Load(path)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("Failed to load article")
		http.Error(w, "failed to load article", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		html.EscapeString(doc.Frontmatter.Title) + "</title>\n</head>\n<body>\n<article>\n"))
	_, _ = w.Write(render.HTML(doc))
	_, _ = w.Write([]byte("</article>\n</body>\n</html>\n"))
}

func (s *Server) handleArticleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema.ArticleDocument())
}

func hasTeam(teams []string, want string) bool {
	for _, t := range teams {
		if strings.ToLower(t) == want || article.Slugify(t) == want {
			return true
		}
	}
	return false
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) respondRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}
