// Package api is the typed REST client for the SimonDuel backend. It owns no
// game state: every call is a plain request/response pair, and the retry
// policy lives with the callers (the poll scheduler and the turn engine).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/klog/v2"
)

// Client issues requests against the backend under BaseURL. TokenSource, if
// set, supplies the bearer token attached to every request; session handling
// itself lives outside this package.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	TokenSource func() string
}

// NewClient returns a Client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// do runs one request and returns the raw body on a 2xx status. Transport
// failures and 5xx become NetworkError, 404 becomes NotFoundError, 409
// becomes ConflictError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, matchID int) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("encoding %s body: %v", op, err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("building %s request: %v", op, err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TokenSource != nil {
		if token := c.TokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	klog.V(1).Infof("api: %s %s %s", op, method, path)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{MatchID: matchID}
	case resp.StatusCode == http.StatusConflict:
		return nil, &ConflictError{Op: op, Mensaje: errorMessage(data)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	return data, nil
}

// errorMessage pulls the human-readable message out of an error body, if any.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Mensaje string `json:"mensaje"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Mensaje != "" {
			return body.Mensaje
		}
	}
	return "rejected"
}

// FetchState retrieves the authoritative match, round and turn snapshot.
// The caller replaces its local state wholesale; nothing is patched.
func (c *Client) FetchState(ctx context.Context, matchID int) (*MatchState, error) {
	const op = "FetchState"
	data, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/partida/%d", matchID), nil, matchID)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool        `json:"success"`
		Data    *MatchState `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		return nil, &MalformedResponseError{Op: op, Reason: "success flag false"}
	}
	if resp.Data == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing data"}
	}
	if resp.Data.Partida.ID == 0 {
		return nil, &MalformedResponseError{Op: op, Reason: "missing partida"}
	}
	if resp.Data.Juego.NivelActual < 0 {
		return nil, &MalformedResponseError{Op: op, Reason: "negative nivelActual"}
	}
	return resp.Data, nil
}

// SubmitSequence posts the player's full sequence for the current level and
// returns the backend's outcome message (resultado.mensaje). The response
// does NOT embed the next round state: callers must re-fetch with FetchState
// to observe the advanced round.
func (c *Client) SubmitSequence(ctx context.Context, matchID int, colores []string) (string, error) {
	const op = "SubmitSequence"
	if len(colores) == 0 {
		return "", &ValidationError{Reason: "empty sequence"}
	}
	body := struct {
		Secuencia []string `json:"secuencia"`
	}{Secuencia: colores}

	data, err := c.do(ctx, op, http.MethodPost, fmt.Sprintf("/disparo/%d", matchID), body, matchID)
	if err != nil {
		return "", err
	}

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Resultado *struct {
			Mensaje string `json:"mensaje"`
		} `json:"resultado"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		// A 200 with success:false on a move is the backend telling us the
		// move is not valid right now (stale turn), not a broken response.
		msg := resp.Message
		if msg == "" && resp.Resultado != nil {
			msg = resp.Resultado.Mensaje
		}
		if msg == "" {
			msg = "movimiento rechazado"
		}
		return "", &ConflictError{Op: op, Mensaje: msg}
	}
	if resp.Resultado == nil {
		return "", &MalformedResponseError{Op: op, Reason: "missing resultado"}
	}
	return resp.Resultado.Mensaje, nil
}

// VerifyWaitingState polls the pre-game lobby state of a match.
func (c *Client) VerifyWaitingState(ctx context.Context, matchID int) (*WaitingState, error) {
	const op = "VerifyWaitingState"
	data, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/verificar-estado/%d", matchID), nil, matchID)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool          `json:"success"`
		Data    *WaitingState `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success || resp.Data == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "success flag false or missing data"}
	}
	return resp.Data, nil
}

// FetchMatchList lists the joinable matches.
func (c *Client) FetchMatchList(ctx context.Context) ([]Match, error) {
	const op = "FetchMatchList"
	data, err := c.do(ctx, op, http.MethodGet, "/partidas", nil, 0)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool    `json:"success"`
		Data    []Match `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		return nil, &MalformedResponseError{Op: op, Reason: "success flag false"}
	}
	return resp.Data, nil
}

// FetchMyMatches lists the matches the authenticated user participates in.
func (c *Client) FetchMyMatches(ctx context.Context) ([]Match, error) {
	const op = "FetchMyMatches"
	data, err := c.do(ctx, op, http.MethodGet, "/mis-partidas", nil, 0)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool    `json:"success"`
		Data    []Match `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		return nil, &MalformedResponseError{Op: op, Reason: "success flag false"}
	}
	return resp.Data, nil
}

// JoinMatch registers the authenticated user as the second player.
func (c *Client) JoinMatch(ctx context.Context, match Match) (*JoinResult, error) {
	const op = "JoinMatch"
	data, err := c.do(ctx, op, http.MethodPost, fmt.Sprintf("/unirse-partida/%d", match.ID), match, match.ID)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    *JoinResult `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		return nil, &ConflictError{Op: op, Mensaje: resp.Message}
	}
	if resp.Data == nil || resp.Data.Partida.ID == 0 {
		return nil, &MalformedResponseError{Op: op, Reason: "missing joined partida"}
	}
	return resp.Data, nil
}

// CancelMatch deletes a pending match. Best-effort from the UI's point of
// view: the waiting room navigates away whether or not this succeeds.
func (c *Client) CancelMatch(ctx context.Context, matchID int) error {
	const op = "CancelMatch"
	_, err := c.do(ctx, op, http.MethodDelete, fmt.Sprintf("/partidas/%d", matchID), nil, matchID)
	return err
}

// CreateMatch creates a new pending match owned by the authenticated user.
func (c *Client) CreateMatch(ctx context.Context, req CreateMatchRequest) (*Match, error) {
	const op = "CreateMatch"
	if req.Nombre == "" || len(req.ColoresDisponibles) == 0 {
		return nil, &ValidationError{Reason: "nombre and colores_disponibles are required"}
	}
	data, err := c.do(ctx, op, http.MethodPost, "/partidas", req, 0)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Message string `json:"message"`
		Partida *Match `json:"partida"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if resp.Partida == nil || resp.Partida.ID == 0 {
		return nil, &MalformedResponseError{Op: op, Reason: "missing created partida"}
	}
	return resp.Partida, nil
}

// FetchStats retrieves the win/loss counters for the home screen.
func (c *Client) FetchStats(ctx context.Context) (*Stats, error) {
	const op = "FetchStats"
	data, err := c.do(ctx, op, http.MethodGet, "/estadisticas", nil, 0)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success  bool `json:"success"`
		Ganadas  int  `json:"ganadas"`
		Perdidas int  `json:"perdidas"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	if !resp.Success {
		return nil, &MalformedResponseError{Op: op, Reason: "success flag false"}
	}
	return &Stats{Ganadas: resp.Ganadas, Perdidas: resp.Perdidas}, nil
}
