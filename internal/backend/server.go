// Package backend is an in-memory implementation of the game API, mounted by
// the server binary in dev mode so the client can be played (and tested)
// without the real backend. It speaks exactly the wire contract the client
// expects; it is not a product server — no auth, no persistence.
package backend

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/simonduel/SimonDuel/internal/api"
	"k8s.io/klog/v2"
)

// WinLevel is the level whose completion wins the match.
const WinLevel = 10

var defaultColors = []string{"rojo", "azul", "verde", "amarillo"}

type user struct {
	id    int
	name  string
	email string
}

type match struct {
	id          int
	nombre      string
	descripcion string
	estado      string
	colores     []string
	creator     *user
	guest       *user
	secuencia   []string
	nivel       int
	turno       int // user id whose move it is
	lastColor   string
	winner      *int
	createdAt   time.Time
	updatedAt   time.Time
}

// Server is the in-memory game backend. It implements http.Handler and can
// be mounted under any prefix.
type Server struct {
	router *httprouter.Router

	mu      sync.Mutex
	users   map[string]*user // keyed by bearer token
	matches map[int]*match
	nextID  int
	rng     *rand.Rand
}

// NewServer returns a ready-to-mount dev backend.
func NewServer() *Server {
	s := &Server{
		router:  httprouter.New(),
		users:   make(map[string]*user),
		matches: make(map[int]*match),
		nextID:  1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.router.GET("/partidas", s.listMatches)
	s.router.POST("/partidas", s.createMatch)
	s.router.DELETE("/partidas/:id", s.deleteMatch)
	s.router.GET("/mis-partidas", s.myMatches)
	s.router.GET("/verificar-estado/:id", s.verifyState)
	s.router.POST("/unirse-partida/:id", s.joinMatch)
	s.router.GET("/partida/:id", s.matchState)
	s.router.POST("/disparo/:id", s.submitSequence)
	s.router.GET("/estadisticas", s.stats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// user resolves the caller from its bearer token, creating a dev identity on
// first sight. An empty token maps to a shared anonymous user.
func (s *Server) user(r *http.Request) *user {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[token]; ok {
		return u
	}
	u := &user{
		id:    s.nextID,
		name:  fmt.Sprintf("Jugador %d", s.nextID),
		email: fmt.Sprintf("jugador%d@simonduel.dev", s.nextID),
	}
	s.nextID++
	s.users[token] = u
	return u
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.Errorf("backend: encoding response: %v", err)
	}
}

func matchID(ps httprouter.Params) (int, error) {
	return strconv.Atoi(ps.ByName("id"))
}

func (m *match) wire() api.Match {
	var j1 *api.Participant
	if m.creator != nil {
		j1 = &api.Participant{ID: m.creator.id, FullName: m.creator.name, Email: m.creator.email}
	}
	return api.Match{
		ID:          m.id,
		Nombre:      m.nombre,
		Descripcion: m.descripcion,
		Estado:      m.estado,
		GanadorID:   m.winner,
		CreatedAt:   m.createdAt.Format(time.RFC3339),
		UpdatedAt:   m.updatedAt.Format(time.RFC3339),
		Jugador1:    j1,
	}
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller := s.user(r)
	s.mu.Lock()
	out := []api.Match{}
	for _, m := range s.matches {
		if m.estado == api.MatchPending && m.creator.id != caller.id {
			out = append(out, m.wire())
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (s *Server) myMatches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller := s.user(r)
	s.mu.Lock()
	out := []api.Match{}
	for _, m := range s.matches {
		if m.creator.id == caller.id || (m.guest != nil && m.guest.id == caller.id) {
			out = append(out, m.wire())
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller := s.user(r)
	var req api.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nombre == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "datos inválidos"})
		return
	}
	colores := req.ColoresDisponibles
	if len(colores) == 0 {
		colores = defaultColors
	}

	s.mu.Lock()
	m := &match{
		id:          s.nextID,
		nombre:      req.Nombre,
		descripcion: req.Descripcion,
		estado:      api.MatchPending,
		colores:     colores,
		creator:     caller,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
	s.nextID++
	s.matches[m.id] = m
	wire := m.wire()
	s.mu.Unlock()

	klog.Infof("backend: match %d created by user %d", wire.ID, caller.id)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Partida creada", "partida": wire})
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := matchID(ps)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "id inválido"})
		return
	}
	s.mu.Lock()
	_, ok := s.matches[id]
	delete(s.matches, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "partida no encontrada"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Partida eliminada"})
}

func (s *Server) verifyState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := matchID(ps)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "id inválido"})
		return
	}
	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "partida no encontrada"})
		return
	}
	players := 1
	if m.guest != nil {
		players = 2
	}
	st := api.WaitingState{
		Estado:         m.estado,
		TotalJugadores: players,
		PuedeIniciar:   players == 2,
		DebeRedirigir:  m.estado == api.MatchInProgress,
		URLRedireccion: fmt.Sprintf("/juego/%d", m.id),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": st})
}

func (s *Server) joinMatch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller := s.user(r)
	id, err := matchID(ps)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "id inválido"})
		return
	}

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "partida no encontrada"})
		return
	}
	if m.guest != nil || m.creator.id == caller.id {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "La partida ya está llena"})
		return
	}

	m.guest = caller
	m.estado = api.MatchInProgress
	m.secuencia = []string{m.colores[s.rng.Intn(len(m.colores))]}
	m.lastColor = m.secuencia[0]
	m.nivel = 0
	m.turno = m.creator.id
	m.updatedAt = time.Now()
	res := api.JoinResult{Partida: m.wire(), JugadorNumero: 2, TotalJugadores: 2}
	s.mu.Unlock()

	klog.Infof("backend: user %d joined match %d, game on", caller.id, id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Te has unido a la partida", "data": res})
}

func (s *Server) matchState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller := s.user(r)
	id, err := matchID(ps)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "id inválido"})
		return
	}

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "partida no encontrada"})
		return
	}

	var opponent *user
	switch caller.id {
	case m.creator.id:
		opponent = m.guest
	default:
		opponent = m.creator
	}

	myTurn := m.estado == api.MatchInProgress && m.turno == caller.id
	finished := m.estado == api.MatchFinished

	juego := api.Round{ID: m.id, NivelActual: m.nivel, MostrarUltimoColor: myTurn && m.lastColor != ""}
	if m.lastColor != "" {
		last := m.lastColor
		juego.UltimoColor = &last
	}
	if myTurn {
		juego.Secuencia = append([]string(nil), m.secuencia...)
	}

	mensaje := "Esperando el turno del oponente..."
	switch {
	case finished:
		mensaje = "La partida ha terminado"
	case myTurn:
		mensaje = "Es tu turno, repite la secuencia"
	case m.estado == api.MatchPending:
		mensaje = "Esperando a que se una un jugador"
	}

	st := api.MatchState{
		Partida:       m.wire(),
		JugadorActual: api.Participant{ID: caller.id, FullName: caller.name, Email: caller.email},
		Juego:         juego,
		Estado: api.TurnStatus{
			EsMiTurno:      myTurn,
			JuegoTerminado: finished,
			Ganador:        m.winner,
			Mensaje:        mensaje,
		},
	}
	if opponent != nil {
		st.Oponente = &api.Participant{ID: opponent.id, FullName: opponent.name, Email: opponent.email}
	}
	if finished {
		st.ResultadoFinal = &api.FinalResult{GanadorID: m.winner, Mensaje: mensaje}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": st})
}

func (s *Server) submitSequence(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller := s.user(r)
	id, err := matchID(ps)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "id inválido"})
		return
	}
	var req struct {
		Secuencia []string `json:"secuencia"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "datos inválidos"})
		return
	}

	s.mu.Lock()
	m, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "partida no encontrada"})
		return
	}
	if m.estado != api.MatchInProgress || m.turno != caller.id {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "No es tu turno"})
		return
	}
	if len(req.Secuencia) != m.nivel+1 {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Secuencia incompleta"})
		return
	}
	for i, c := range req.Secuencia {
		if !strings.EqualFold(c, m.secuencia[i]) {
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Secuencia incorrecta"})
			return
		}
	}

	// Correct: grow the sequence and hand the turn over.
	mensaje := "¡Correcto! Espera tu siguiente turno"
	if m.nivel+1 >= WinLevel {
		m.estado = api.MatchFinished
		winner := caller.id
		m.winner = &winner
		mensaje = "¡Has ganado la partida!"
	} else {
		next := m.colores[s.rng.Intn(len(m.colores))]
		m.secuencia = append(m.secuencia, next)
		m.lastColor = next
		m.nivel++
		if m.turno == m.creator.id {
			m.turno = m.guest.id
		} else {
			m.turno = m.creator.id
		}
	}
	m.updatedAt = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resultado": map[string]string{"mensaje": mensaje}})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller := s.user(r)
	s.mu.Lock()
	var won, lost int
	for _, m := range s.matches {
		if m.estado != api.MatchFinished || m.winner == nil {
			continue
		}
		mine := m.creator.id == caller.id || (m.guest != nil && m.guest.id == caller.id)
		if !mine {
			continue
		}
		if *m.winner == caller.id {
			won++
		} else {
			lost++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ganadas": won, "perdidas": lost})
}
