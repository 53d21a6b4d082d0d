package api

// Match lifecycle states as the backend reports them.
const (
	MatchPending    = "pendiente"
	MatchInProgress = "en_curso"
	MatchFinished   = "finalizada"
)

// Participant is one of the two users attached to a match.
type Participant struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Match is the backend's snapshot of a game between two participants.
// The client never mutates it directly; it only joins, cancels or submits.
type Match struct {
	ID          int          `json:"id"`
	Nombre      string       `json:"nombre"`
	Descripcion string       `json:"descripcion"`
	Estado      string       `json:"estado"`
	GanadorID   *int         `json:"ganadorId"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
	Jugador1    *Participant `json:"jugador1,omitempty"`
}

// Round is the authoritative per-poll round snapshot. Secuencia is only
// present when the viewer is allowed to see the target sequence.
type Round struct {
	ID                 int      `json:"id"`
	Secuencia          []string `json:"secuencia,omitempty"`
	UltimoColor        *string  `json:"ultimoColor"`
	MostrarUltimoColor bool     `json:"mostrarUltimoColor"`
	NivelActual        int      `json:"nivelActual"`
}

// TurnStatus is recomputed by the backend on every fetch; it is never
// patched incrementally on the client.
type TurnStatus struct {
	EsMiTurno      bool   `json:"esMiTurno"`
	JuegoTerminado bool   `json:"juegoTerminado"`
	Ganador        *int   `json:"ganador"`
	Mensaje        string `json:"mensaje"`
}

// FinalResult is only present once the match has finished.
type FinalResult struct {
	GanadorID *int   `json:"ganadorId"`
	Mensaje   string `json:"mensaje"`
}

// MatchState is the full payload of GET /partida/{id}.
type MatchState struct {
	Partida        Match        `json:"partida"`
	JugadorActual  Participant  `json:"jugadorActual"`
	Oponente       *Participant `json:"oponente"`
	Juego          Round        `json:"juego"`
	Estado         TurnStatus   `json:"estado"`
	ResultadoFinal *FinalResult `json:"resultadoFinal"`
}

// WaitingState is the payload of GET /verificar-estado/{id}, polled by the
// waiting room until a second player arrives.
type WaitingState struct {
	Estado         string `json:"estado"`
	TotalJugadores int    `json:"totalJugadores"`
	PuedeIniciar   bool   `json:"puedeIniciar"`
	DebeRedirigir  bool   `json:"debeRedirigir"`
	URLRedireccion string `json:"urlRedireccion"`
}

// JoinResult is the payload of POST /unirse-partida/{id}.
type JoinResult struct {
	Partida        Match `json:"partida"`
	JugadorNumero  int   `json:"jugador_numero"`
	TotalJugadores int   `json:"total_jugadores"`
}

// CreateMatchRequest is the body of POST /partidas.
type CreateMatchRequest struct {
	Nombre             string   `json:"nombre"`
	Descripcion        string   `json:"descripcion"`
	ColoresDisponibles []string `json:"colores_disponibles"`
}

// Stats are the aggregate win/loss counters shown on the home screen.
type Stats struct {
	Ganadas  int `json:"ganadas"`
	Perdidas int `json:"perdidas"`
}
