// pattern-mockapi is a development stand-in for the Pattern backend. It
// implements the endpoints the engine talks to, including a chunk-flushing
// analyze stream, with all state held in memory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const sampleReport = `# Your Energy Pattern

## Water

You move like water: around obstacles, not through them. This report traces
how that shows up in your work, your bonds and your timing.

## Career

Momentum builds slowly for you, then all at once. The patterns suggest your
best decisions come after a deliberate pause.

## Bonds

You read rooms quickly and forget to read yourself. Balance follows when you
turn that attention inward.
`

type wireReport struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Content   string `json:"content"`
	BirthDate string `json:"birth_date"`
	BirthTime string `json:"birth_time,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

type wireProfile struct {
	ID        string `json:"id,omitempty"`
	BirthDate string `json:"birthDate"`
	BirthTime string `json:"birthTime,omitempty"`
	Gender    string `json:"gender"`
	City      string `json:"city,omitempty"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// server holds the in-memory backend state.
type server struct {
	mu       sync.Mutex
	reports  map[string]wireReport
	profiles map[string]wireProfile

	chunkDelay  time.Duration
	requireAuth bool
}

func main() {
	var (
		port        = flag.Int("port", 8490, "port to listen on")
		chunkDelay  = flag.Duration("chunk-delay", time.Second, "delay between analyze chunks")
		requireAuth = flag.Bool("require-auth", false, "reject unauthenticated history/profile calls with 401")
	)
	flag.Parse()

	s := &server{
		reports:     make(map[string]wireReport),
		profiles:    make(map[string]wireProfile),
		chunkDelay:  *chunkDelay,
		requireAuth: *requireAuth,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/app/analyze", s.handleAnalyze).Methods("POST")
	r.HandleFunc("/api/app/history", s.handleHistoryList).Methods("GET")
	r.HandleFunc("/api/app/history", s.handleHistoryUpload).Methods("POST")
	r.HandleFunc("/api/app/history/{id}", s.handleHistoryGet).Methods("GET")
	r.HandleFunc("/api/app/history/{id}", s.handleHistoryDelete).Methods("DELETE")
	r.HandleFunc("/app/profile", s.handleProfileList).Methods("GET")
	r.HandleFunc("/app/profile", s.handleProfileCreate).Methods("POST")
	r.HandleFunc("/app/profile/{id}", s.handleProfileUpdate).Methods("PUT")
	r.HandleFunc("/app/profile/{id}", s.handleProfileDelete).Methods("DELETE")
	r.HandleFunc("/api/app/profile/sync", s.handleProfileSync).Methods("POST")
	r.HandleFunc("/app/config", s.handleBootstrap).Methods("GET")

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("pattern-mockapi listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

// authorized enforces the optional bearer check.
func (s *server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !s.requireAuth {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		return true
	}
	writeError(w, http.StatusUnauthorized, "missing bearer token")
	return false
}

// handleAnalyze streams a canned report: the server-assigned id line first,
// then the body in flushed chunks.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var request struct {
		BirthDate string `json:"birthDate"`
		BirthTime string `json:"birthTime"`
		Gender    string `json:"gender"`
		Language  string `json:"language"`
		Key       string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.BirthDate == "" {
		writeError(w, http.StatusBadRequest, "birthDate is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	logID := uuid.New().String()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "[LOG_ID:%s]\n", logID)
	flusher.Flush()

	// Three roughly equal chunks, paced by chunkDelay.
	chunkSize := (len(sampleReport) + 2) / 3
	for i := 0; i < len(sampleReport); i += chunkSize {
		end := i + chunkSize
		if end > len(sampleReport) {
			end = len(sampleReport)
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.chunkDelay):
		}
		fmt.Fprint(w, sampleReport[i:end])
		flusher.Flush()
	}

	s.mu.Lock()
	s.reports[logID] = wireReport{
		ID:        logID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Content:   sampleReport,
		BirthDate: request.BirthDate,
		BirthTime: request.BirthTime,
		Gender:    request.Gender,
	}
	s.mu.Unlock()
	log.Printf("analyze stream completed: %s", logID)
}

func (s *server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]string, 0, len(s.reports))
	for id := range s.reports {
		items = append(items, map[string]string{"id": id})
	}
	writeJSON(w, items)
}

func (s *server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	report, ok := s.reports[mux.Vars(r)["id"]]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, report)
}

func (s *server) handleHistoryUpload(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var body struct {
		Reports []wireReport `json:"reports"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	s.mu.Lock()
	for _, report := range body.Reports {
		if report.ID != "" {
			s.reports[report.ID] = report
		}
	}
	s.mu.Unlock()
	writeJSON(w, map[string]int{"synced": len(body.Reports)})
}

func (s *server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	delete(s.reports, mux.Vars(r)["id"])
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleProfileList(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make([]wireProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	writeJSON(w, map[string]any{"profiles": profiles})
}

func (s *server) handleProfileCreate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var profile wireProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil || profile.BirthDate == "" {
		writeError(w, http.StatusBadRequest, "birthDate is required")
		return
	}

	// Client-supplied IDs are honored so post-login upload is an upsert.
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.CreatedAt == "" {
		profile.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	s.mu.Lock()
	s.profiles[profile.ID] = profile
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "profile": profile})
}

func (s *server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	existing, ok := s.profiles[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	var update wireProfile
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	update.ID = id
	update.CreatedAt = existing.CreatedAt

	s.mu.Lock()
	s.profiles[id] = update
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "profile": update})
}

func (s *server) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.mu.Lock()
	delete(s.profiles, mux.Vars(r)["id"])
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleProfileSync(w http.ResponseWriter, r *http.Request) {
	// Bulk profile sync always requires a token, regardless of -require-auth.
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var body struct {
		Profiles []wireProfile `json:"profiles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	s.mu.Lock()
	for _, profile := range body.Profiles {
		if profile.ID == "" {
			profile.ID = uuid.New().String()
		}
		if profile.CreatedAt == "" {
			profile.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		}
		s.profiles[profile.ID] = profile
	}
	s.mu.Unlock()
	writeJSON(w, map[string]int{"synced": len(body.Profiles)})
}

// handleBootstrap serves the app config in the flattened shape to exercise
// the client's fallback parser.
func (s *server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"version.latest_version":    "1.2.0",
		"version.force_update":      "false",
		"features.show_home_banner": "true",
		"ui.theme_color":            "system",
		"announcement.enabled":      "false",
		"ads.enabled":               "false",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
