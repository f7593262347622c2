package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/engine"
	"github.com/knowledge-engine/newsir/internal/search"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router *http.ServeMux

	search     config.SearchConfig
	httpServer *http.Server
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger.WithField("component", "api"),
		Router: http.NewServeMux(),
		search: eng.Config.Search,
	}
	s.httpServer = &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/init", s.handleInit)
	s.Router.HandleFunc("/api/v1/search", s.handleSearch)
	s.Router.HandleFunc("/api/v1/documents/{id}", s.handleDocument)
	s.Router.HandleFunc("/api/v1/stats", s.handleStats)
	s.Router.HandleFunc("/api/v1/health", s.handleHealth)
}

func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.Logger.Infof("Starting API Server on %s", ln.Addr())
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type SearchResponse struct {
	Query          string             `json:"query"`
	ProcessedQuery []string           `json:"processed_query"`
	Filters        search.Filters     `json:"filters"`
	Total          int                `json:"total"`
	Results        []SearchResultView `json:"results"`
}

type SearchResultView struct {
	search.Result
	SimilarityPercent float64 `json:"similarity_percent"`
}

type StatsResponse struct {
	engine.Status
	LastBuild *engine.Stats `json:"last_build,omitempty"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Initialized bool           `json:"initialized"`
	Documents   int            `json:"documents"`
	Sources     map[string]int `json:"sources"`
}

// Requests
type InitRequest struct {
	Sources []config.SourceConfig `json:"sources"`
}

type SearchRequest struct {
	Query    string `json:"query"`
	Q        string `json:"q"`
	TopK     TopK   `json:"top_k"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// TopK accepts a number or the string "all"
type TopK struct {
	Value int
	Set   bool
}

func (k *TopK) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		// clamp before converting; int(v) is undefined past the int range
		switch {
		case v >= math.MaxInt32:
			k.Value = math.MaxInt32
		case v < 0:
			k.Value = search.All
		default:
			k.Value = int(v)
		}
		k.Set = true
		return nil
	case string:
		return k.parse(v)
	default:
		return errors.New("top_k must be a number or \"all\"")
	}
}

func (k *TopK) parse(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.EqualFold(v, "all") {
		k.Value, k.Set = search.All, true
		return nil
	}
	n, err := strconv.Atoi(v)
	if errors.Is(err, strconv.ErrRange) {
		// Atoi saturates at the int bounds
		err = nil
	}
	if err != nil {
		return errors.New("top_k must be a number or \"all\"")
	}
	k.Value, k.Set = n, true
	return nil
}

// limit applies the configured default and cap. "all" is never capped.
func (s *Server) limit(k TopK) int {
	if !k.Set || k.Value == 0 {
		return s.search.DefaultTopK
	}
	if k.Value < 0 {
		return search.All
	}
	if s.search.MaxTopK > 0 && k.Value > s.search.MaxTopK {
		return s.search.MaxTopK
	}
	return k.Value
}

// Handlers

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}

	stats, err := s.Engine.Initialize(r.Context(), req.Sources)
	if err != nil {
		s.Logger.WithError(err).Warn("Initialization failed")
		jsonResponse(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		req.Q = params.Get("q")
		req.Query = params.Get("query")
		req.Category = params.Get("category")
		req.Source = params.Get("source")
		if err := req.TopK.parse(params.Get("top_k")); err != nil {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.Q)
	}
	if query == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'q' is required"})
		return
	}

	filters := search.Filters{Category: req.Category, Source: req.Source}
	results, err := s.Engine.Search(query, s.limit(req.TopK), filters)
	switch {
	case errors.Is(err, engine.ErrNotInitialized):
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, search.ErrEmptyQuery):
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	response := SearchResponse{
		Query:          query,
		ProcessedQuery: s.Engine.ProcessedQuery(query),
		Filters:        filters,
		Total:          len(results),
		Results:        make([]SearchResultView, len(results)),
	}
	for i, res := range results {
		response.Results[i] = SearchResultView{
			Result:            res,
			SimilarityPercent: min(res.Score*100, 100),
		}
	}

	s.Logger.WithFields(logrus.Fields{"query": query, "results": len(results)}).Debug("Search served")
	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Document id must be an integer"})
		return
	}
	if !s.Engine.IsInitialized() {
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: engine.ErrNotInitialized.Error()})
		return
	}

	doc, ok := s.Engine.GetDocument(id)
	if !ok {
		jsonResponse(w, http.StatusNotFound, ErrorResponse{Error: "Document not found"})
		return
	}
	jsonResponse(w, http.StatusOK, doc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, http.StatusOK, StatsResponse{
		Status:    s.Engine.GetStats(),
		LastBuild: s.Engine.LastBuild(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.Engine.GetStats()
	resp := HealthResponse{
		Status:      "ok",
		Initialized: status.Initialized,
		Documents:   status.DocumentCount,
		Sources:     status.Sources,
	}
	if !status.Initialized {
		resp.Status = "not_initialized"
	}
	if resp.Sources == nil {
		resp.Sources = map[string]int{}
	}
	jsonResponse(w, http.StatusOK, resp)
}

func jsonResponse(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
