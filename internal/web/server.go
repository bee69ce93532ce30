package web

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cmhannon/flashfam/internal/content"
	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/family"
	"github.com/cmhannon/flashfam/internal/practice"
	"github.com/cmhannon/flashfam/internal/storage"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	family   *family.Store
	dbs      *family.DBManager
	practice *practice.Service
	syncer   *content.Syncer
	router   *http.ServeMux
	validate *validator.Validate
	log      *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(fam *family.Store, dbs *family.DBManager, svc *practice.Service, syncer *content.Syncer, log *slog.Logger) *Server {
	s := &Server{
		family:   fam,
		dbs:      dbs,
		practice: svc,
		syncer:   syncer,
		router:   http.NewServeMux(),
		validate: validator.New(),
		log:      log,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/kids", s.handleListKids)
	s.router.HandleFunc("POST /api/kids", s.handleAddKid)

	s.router.HandleFunc("GET /api/kids/{kid}/decks", s.handleListDecks)
	s.router.HandleFunc("POST /api/kids/{kid}/decks", s.handleCreateDeck)
	s.router.HandleFunc("GET /api/kids/{kid}/decks/{deck}/cards", s.handleListCards)
	s.router.HandleFunc("POST /api/kids/{kid}/decks/{deck}/cards", s.handleAddCard)
	s.router.HandleFunc("POST /api/kids/{kid}/decks/{deck}/cards/bulk", s.handleBulkAddCards)
	s.router.HandleFunc("PATCH /api/kids/{kid}/decks/{deck}/source", s.handleSetDeckSource)
	s.router.HandleFunc("POST /api/kids/{kid}/decks/{deck}/sync", s.handleSyncDeck)

	s.router.HandleFunc("PATCH /api/kids/{kid}/cards/{card}/skip", s.handleSkipCard)
	s.router.HandleFunc("DELETE /api/kids/{kid}/cards/{card}", s.handleDeleteCard)

	s.router.HandleFunc("GET /api/kids/{kid}/practice/preview", s.handlePreview)
	s.router.HandleFunc("POST /api/kids/{kid}/practice/plan", s.handlePlan)
	s.router.HandleFunc("POST /api/kids/{kid}/practice/complete", s.handleComplete)

	s.router.HandleFunc("POST /api/kids/{kid}/seed/math", s.handleSeedMath)
	s.router.HandleFunc("POST /api/kids/{kid}/seed/lessons", s.handleSeedLessons)
}

// kidDB resolves the {kid} path segment into that kid's database.
func (s *Server) kidDB(r *http.Request) (string, *storage.DB, error) {
	kidID := r.PathValue("kid")
	if _, err := s.family.Kid(kidID); err != nil {
		return "", nil, err
	}
	db, err := s.dbs.Get(kidID)
	if err != nil {
		return "", nil, err
	}
	return kidID, db, nil
}

func (s *Server) handleListKids(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.family.Kids())
}

func (s *Server) handleAddKid(w http.ResponseWriter, r *http.Request) {
	var kid domain.Kid
	if err := s.decode(r, &kid); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.family.AddKid(kid); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, kid)
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decks, err := db.ListDecks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decks)
}

type createDeckRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Source      string `json:"source"`
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req createDeckRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id, err := db.CreateDeck(r.Context(), domain.Deck{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Source:      req.Source,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deckID, err := pathID(r, "deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats, err := db.ListCardStats(r.Context(), deckID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toCardStatsJSON(stats))
}

type addCardRequest struct {
	Front     string `json:"front" validate:"required"`
	Back      string `json:"back"`
	AudioFile string `json:"audio_file"`
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deckID, err := pathID(r, "deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req addCardRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	deck, err := db.GetDeck(r.Context(), deckID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	card := domain.Card{
		DeckID:    deckID,
		Front:     req.Front,
		Back:      req.Back,
		AudioFile: req.AudioFile,
	}

	var id int64
	if isWritingDeck(deck) {
		id, err = db.InsertWritingCard(r.Context(), card)
	} else {
		id, err = db.InsertCard(r.Context(), card)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type bulkAddRequest struct {
	Text string `json:"text" validate:"required"`
	// Mode "cards" parses F:/B: blocks; "phrases" splits pasted text
	// into writing phrases deduplicated by answer.
	Mode string `json:"mode" validate:"oneof=cards phrases"`
}

func (s *Server) handleBulkAddCards(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deckID, err := pathID(r, "deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req bulkAddRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cards, dedup, err := bulkCards(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inserted, err := db.BulkInsertCards(r.Context(), deckID, cards, dedup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

func (s *Server) handleSkipCard(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cardID, err := pathID(r, "card")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Skip bool `json:"skip"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := db.SetSkipPractice(r.Context(), cardID, req.Skip); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cardID, err := pathID(r, "card")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := db.DeleteCard(r.Context(), cardID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDeckSource(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deckID, err := pathID(r, "deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Source string `json:"source" validate:"required"`
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := db.SetDeckSource(r.Context(), deckID, req.Source); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncDeck(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deckID, err := pathID(r, "deck")
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.syncer.SyncDeck(r.Context(), db, deckID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
