// Package mock provides an in-memory stand-in for the mirror REST API, used
// for smoke runs and tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Balance is one account's holding of a token.
type Balance struct {
	Account  string `json:"account"`
	Balance  int64  `json:"balance"`
	Decimals int    `json:"decimals"`
}

// Token is a token known to the mock mirror.
type Token struct {
	TokenID   string    `json:"token_id"`
	Symbol    string    `json:"symbol"`
	Type      string    `json:"type"`
	Decimals  int       `json:"decimals"`
	CreatedAt string    `json:"created_timestamp"`
	Balances  []Balance `json:"-"`
}

// Server serves a fixed set of tokens over the mirror REST paths.
type Server struct {
	router   *Router
	port     int
	delay    time.Duration
	verbose  bool
	tokens   map[string]*Token
	snapshot string
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose enables verbose logging
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithTokens replaces the default token set.
func WithTokens(tokens ...*Token) Option {
	return func(s *Server) {
		s.tokens = make(map[string]*Token, len(tokens))
		for _, t := range tokens {
			s.tokens[t.TokenID] = t
		}
	}
}

// WithSnapshotTimestamp sets the balance snapshot timestamp reported in
// responses.
func WithSnapshotTimestamp(ts string) Option {
	return func(s *Server) {
		s.snapshot = ts
	}
}

// DefaultTokens is the data set served when WithTokens is not used.
func DefaultTokens() []*Token {
	return []*Token{
		{
			TokenID:   "0.0.1001",
			Symbol:    "MIRROR",
			Type:      "FUNGIBLE_COMMON",
			Decimals:  2,
			CreatedAt: "1600000000.000000001",
			Balances: []Balance{
				{Account: "0.0.2001", Balance: 1500, Decimals: 2},
				{Account: "0.0.2002", Balance: 250, Decimals: 2},
			},
		},
		{
			TokenID:   "0.0.1002",
			Symbol:    "NFT",
			Type:      "NON_FUNGIBLE_UNIQUE",
			CreatedAt: "1650000000.000000001",
			Balances: []Balance{
				{Account: "0.0.2003", Balance: 1},
			},
		},
	}
}

// DefaultSnapshotTimestamp is the balance snapshot the mock reports.
const DefaultSnapshotTimestamp = "1700000000.000000001"

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router:   NewRouter(),
		port:     5551,
		snapshot: DefaultSnapshotTimestamp,
	}
	WithTokens(DefaultTokens()...)(s)

	for _, opt := range opts {
		opt(s)
	}

	s.router.Handle(http.MethodGet, "/api/v1/tokens", "tokens", s.handleTokens)
	s.router.Handle(http.MethodGet, "/api/v1/tokens/{id}", "tokensId", s.handleToken)
	s.router.Handle(http.MethodGet, "/api/v1/tokens/{id}/balances", "tokensIdBalances", s.handleTokenBalances)

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// StartWithContext serves until ctx is cancelled.
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Mock mirror starting on http://localhost:%d/api/v1", s.port)
	if s.verbose {
		for _, route := range s.router.routes {
			log.Printf("  %s %s", route.Method, route.PathPattern)
		}
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// GetRoutes returns all registered routes
func (s *Server) GetRoutes() []*Route {
	return s.router.routes
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	route, params := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		writeError(w, http.StatusNotFound, "Not found")
		if s.verbose {
			log.Printf("%s %s -> 404 (%s)", r.Method, r.URL.Path, time.Since(start))
		}
		return
	}

	route.Handler(w, r, params)

	if s.verbose {
		log.Printf("%s %s -> %s (%s)", r.Method, r.URL.RequestURI(), route.Name, time.Since(start))
	}
}

var (
	entityIDPattern  = regexp.MustCompile(`^\d{1,10}\.\d{1,10}\.\d{1,10}$`)
	timestampPattern = regexp.MustCompile(`^\d{1,10}(\.\d{1,9})?$`)
)

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := make([]string, 0, len(s.tokens))
	for id, t := range s.tokens {
		if typ := q.Get("type"); typ != "" && !strings.EqualFold(typ, t.Type) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return entityLess(ids[i], ids[j]) })
	if strings.EqualFold(q.Get("order"), "desc") {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	tokens := make([]*Token, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, s.tokens[id])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": tokens,
		"links":  map[string]any{"next": nil},
	})
}

func (s *Server) handleToken(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	token, status, msg := s.lookupToken(params["id"])
	if token == nil {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleTokenBalances(w http.ResponseWriter, r *http.Request, params map[string]string) {
	token, status, msg := s.lookupToken(params["id"])
	if token == nil {
		writeError(w, status, msg)
		return
	}

	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := s.snapshot
	balances := token.Balances
	if ts := strings.TrimPrefix(q.Get("timestamp"), "lte:"); ts != "" {
		if !timestampPattern.MatchString(ts) {
			writeError(w, http.StatusBadRequest, "Invalid parameter: timestamp")
			return
		}
		if compareTimestamps(ts, token.CreatedAt) < 0 {
			balances = nil
			snapshot = ""
		} else if compareTimestamps(ts, s.snapshot) < 0 {
			snapshot = ts
		}
	}
	if len(balances) > limit {
		balances = balances[:limit]
	}
	if balances == nil {
		balances = []Balance{}
	}

	var timestamp any
	if snapshot != "" {
		timestamp = snapshot
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": timestamp,
		"balances":  balances,
		"links":     map[string]any{"next": nil},
	})
}

func (s *Server) lookupToken(id string) (*Token, int, string) {
	if !entityIDPattern.MatchString(id) {
		return nil, http.StatusBadRequest, "Invalid Token id"
	}
	token, ok := s.tokens[id]
	if !ok {
		return nil, http.StatusNotFound, "Not found"
	}
	return token, 0, ""
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 25, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("Invalid parameter: limit")
	}
	return limit, nil
}

// compareTimestamps orders "seconds.nanos" strings numerically.
func compareTimestamps(a, b string) int {
	as, an := splitTimestamp(a)
	bs, bn := splitTimestamp(b)
	if as != bs {
		return cmpInt(as, bs)
	}
	return cmpInt(an, bn)
}

func splitTimestamp(ts string) (int64, int64) {
	secPart, nanoPart, _ := strings.Cut(ts, ".")
	sec, _ := strconv.ParseInt(secPart, 10, 64)
	nanoPart = (nanoPart + "000000000")[:9]
	nanos, _ := strconv.ParseInt(nanoPart, 10, 64)
	return sec, nanos
}

func entityLess(a, b string) bool {
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	for i := 0; i < len(ap) && i < len(bp); i++ {
		ai, _ := strconv.ParseInt(ap[i], 10, 64)
		bi, _ := strconv.ParseInt(bp[i], 10, 64)
		if ai != bi {
			return ai < bi
		}
	}
	return len(ap) < len(bp)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"_status": map[string]any{
			"messages": []map[string]string{{"message": message}},
		},
	})
}
