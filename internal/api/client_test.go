package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL), srv
}

func TestFetchStateDecodesFullPayload(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/partida/3" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"partida": {"id": 3, "nombre": "duelo", "estado": "en_curso"},
				"jugadorActual": {"id": 10, "fullName": "Ana", "email": "ana@x.com"},
				"oponente": {"id": 11, "fullName": "Luis", "email": "luis@x.com"},
				"juego": {"id": 3, "secuencia": ["rojo","azul"], "ultimoColor": "azul", "mostrarUltimoColor": true, "nivelActual": 1},
				"estado": {"esMiTurno": true, "juegoTerminado": false, "ganador": null, "mensaje": "Es tu turno"},
				"resultadoFinal": null
			}
		}`))
	})
	defer srv.Close()

	st, err := c.FetchState(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if st.Partida.ID != 3 || st.Partida.Estado != MatchInProgress {
		t.Errorf("partida = %+v", st.Partida)
	}
	if !st.Estado.EsMiTurno || st.Estado.Mensaje != "Es tu turno" {
		t.Errorf("estado = %+v", st.Estado)
	}
	if len(st.Juego.Secuencia) != 2 || st.Juego.NivelActual != 1 {
		t.Errorf("juego = %+v", st.Juego)
	}
	if st.Juego.UltimoColor == nil || *st.Juego.UltimoColor != "azul" || !st.Juego.MostrarUltimoColor {
		t.Errorf("ultimoColor = %+v", st.Juego)
	}
	if st.Oponente == nil || st.Oponente.ID != 11 {
		t.Errorf("oponente = %+v", st.Oponente)
	}
}

func TestFetchStateErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "404 is NotFoundError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"partida no encontrada"}`, http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				if !errors.As(err, &nf) {
					t.Fatalf("got %T (%v), want NotFoundError", err, err)
				}
				if nf.MatchID != 3 {
					t.Errorf("MatchID = %d", nf.MatchID)
				}
			},
		},
		{
			name: "success false is MalformedResponseError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success": false}`))
			},
			check: func(t *testing.T, err error) {
				var mr *MalformedResponseError
				if !errors.As(err, &mr) {
					t.Fatalf("got %T (%v), want MalformedResponseError", err, err)
				}
			},
		},
		{
			name: "missing data is MalformedResponseError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success": true}`))
			},
			check: func(t *testing.T, err error) {
				var mr *MalformedResponseError
				if !errors.As(err, &mr) {
					t.Fatalf("got %T (%v), want MalformedResponseError", err, err)
				}
			},
		},
		{
			name: "garbage body is MalformedResponseError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>proxy error</html>`))
			},
			check: func(t *testing.T, err error) {
				var mr *MalformedResponseError
				if !errors.As(err, &mr) {
					t.Fatalf("got %T (%v), want MalformedResponseError", err, err)
				}
			},
		},
		{
			name: "500 is NetworkError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			check: func(t *testing.T, err error) {
				var ne *NetworkError
				if !errors.As(err, &ne) {
					t.Fatalf("got %T (%v), want NetworkError", err, err)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, srv := newTestClient(tc.handler)
			defer srv.Close()
			_, err := c.FetchState(context.Background(), 3)
			if err == nil {
				t.Fatal("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestFetchStateTransportFailureIsNetworkError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from here on

	_, err := c.FetchState(context.Background(), 3)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("got %T (%v), want NetworkError", err, err)
	}
}

func TestSubmitSequencePostsOrderedColors(t *testing.T) {
	var gotBody struct {
		Secuencia []string `json:"secuencia"`
	}
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/disparo/3" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"success": true, "resultado": {"mensaje": "¡Correcto!"}}`))
	})
	defer srv.Close()

	msg, err := c.SubmitSequence(context.Background(), 3, []string{"red", "blue", "green"})
	if err != nil {
		t.Fatal(err)
	}
	if msg != "¡Correcto!" {
		t.Errorf("mensaje = %q", msg)
	}
	want := []string{"red", "blue", "green"}
	if len(gotBody.Secuencia) != len(want) {
		t.Fatalf("body = %v", gotBody.Secuencia)
	}
	for i := range want {
		if gotBody.Secuencia[i] != want[i] {
			t.Errorf("secuencia[%d] = %q, want %q", i, gotBody.Secuencia[i], want[i])
		}
	}
}

func TestSubmitSequenceDomainRejectionIsConflict(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "No es tu turno"}`))
	})
	defer srv.Close()

	_, err := c.SubmitSequence(context.Background(), 3, []string{"red"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %T (%v), want ConflictError", err, err)
	}
	if conflict.Mensaje != "No es tu turno" {
		t.Errorf("Mensaje = %q", conflict.Mensaje)
	}
}

func TestSubmitSequenceRejectsEmptyLocally(t *testing.T) {
	called := false
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) { called = true })
	defer srv.Close()

	_, err := c.SubmitSequence(context.Background(), 3, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %T (%v), want ValidationError", err, err)
	}
	if called {
		t.Error("invalid request reached the network")
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success": true, "data": []}`))
	})
	defer srv.Close()
	c.TokenSource = func() string { return "tok-123" }

	if _, err := c.FetchMatchList(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestVerifyWaitingStateDecodes(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"estado": "en_curso", "totalJugadores": 2, "puedeIniciar": true, "debeRedirigir": true, "urlRedireccion": "/juego/3"}}`))
	})
	defer srv.Close()

	st, err := c.VerifyWaitingState(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !st.PuedeIniciar || st.Estado != MatchInProgress || st.URLRedireccion != "/juego/3" {
		t.Errorf("state = %+v", st)
	}
}

func TestJoinMatchFullIsConflict(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "La partida ya está llena"}`))
	})
	defer srv.Close()

	_, err := c.JoinMatch(context.Background(), Match{ID: 3})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %T (%v), want ConflictError", err, err)
	}
}
