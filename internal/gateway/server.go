package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ironwood-sim/ironwood/internal/account"
	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/transport"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// Gateway is the thin client-facing edge of one transport worker: account
// registration and login over HTTP, then a websocket session authenticated
// with a single-use token.
type Gateway struct {
	port    uint16
	manager *account.Manager
	client  *messaging.Client
	service *transport.Service

	upgrader websocket.Upgrader
}

func NewGateway(port uint16, manager *account.Manager, client *messaging.Client, service *transport.Service) *Gateway {
	g := &Gateway{
		port:    port,
		manager: manager,
		client:  client,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	// Push each frame to every locally live session
	service.OnFrame(g.pushFrame)

	return g
}

func (g *Gateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /account/create", g.handleCreate)
	mux.HandleFunc("POST /account/login", g.handleLogin)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		g.handleSocket(ctx, w, r)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", g.port),
		Handler: mux,
	}

	// done signals that Start is returning (either success or failure)
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("gateway shutdown", "error", err)
			}
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "gateway listening", "port", g.port)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETERS")
		return
	}

	created, err := g.manager.Create(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, account.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETERS")
	case errors.Is(err, account.ErrUsernameConflict):
		writeError(w, http.StatusConflict, "USERNAME_CONFLICT")
	case err != nil:
		slog.Error("creating account", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{
			"id":       created.Id,
			"username": created.Username,
			"name":     created.Name,
		})
	}
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETERS")
		return
	}

	match, err := g.manager.ForUsernamePassword(req.Username, req.Password)
	if err != nil {
		slog.Error("authenticating account", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}
	if match == nil {
		writeError(w, http.StatusUnauthorized, "SIGNIN")
		return
	}

	token, err := g.client.IssueToken(r.Context(), match.Id)
	if err != nil {
		slog.Error("issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// initializeMessage is the first message of every websocket session.
type initializeMessage struct {
	Kind string `json:"kind"`
	View struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"view"`
	Time struct {
		SimulationTime         time.Time `json:"simulationTime"`
		SimulationTimeVelocity float64   `json:"simulationTimeVelocity"`
		ServerTime             int64     `json:"serverTime"`
	} `json:"time"`
	Actors []*world.Actor `json:"actors"`
}

type clientMessage struct {
	Kind  string `json:"kind"`
	ViewX int    `json:"viewX"`
	ViewY int    `json:"viewY"`
}

type frameMessage struct {
	Kind          string                 `json:"kind"`
	State         *world.SimulationState `json:"state"`
	UpdatedActors []*world.Actor         `json:"updatedActors"`
}

func (g *Gateway) handleSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	// Redeem the single-use token before upgrading
	acct, err := g.client.LoginToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		slog.Warn("token login", "error", err)
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE")
		return
	}
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}

	conn := newWsConn(ws)
	registry := g.service.Registry()
	registry.Track(conn)

	// At most one live socket per account: evict any previous session, which
	// may live on a different worker, via the broadcast loop.
	if existing := g.service.Sockets().ForId(acct.Id); existing != "" {
		g.service.DisconnectSocket(existing)
	}

	socketId := uuid.New().String()
	registry.Connect(socketId, acct.Id, conn)
	g.service.ConnectSocket(socketId, acct.Id)

	if err := conn.SendJSON(g.initialize(acct)); err != nil {
		slog.Warn("sending initialize", "socket_id", socketId, "error", err)
		g.service.DisconnectSocket(socketId)
		return
	}

	slog.InfoContext(ctx, "client socket connected", "socket_id", socketId)
	g.readLoop(conn, socketId, acct.Id)
	slog.InfoContext(ctx, "client socket disconnected", "socket_id", socketId)
}

func (g *Gateway) initialize(acct *world.Account) initializeMessage {
	msg := initializeMessage{Kind: "initialize"}
	msg.View.X = acct.ViewX
	msg.View.Y = acct.ViewY

	if state := g.service.States().State(); state != nil {
		msg.Time.SimulationTime = state.SimulationTime
		msg.Time.SimulationTimeVelocity = state.SimulationTimeVelocity
		msg.Time.ServerTime = state.ServerTime
	}
	msg.Actors = g.service.Actors().All()
	return msg
}

func (g *Gateway) readLoop(conn *wsConn, socketId, accountId string) {
	defer g.service.DisconnectSocket(socketId)

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Kind == "view" {
			g.service.SaveView(accountId, msg.ViewX, msg.ViewY)
		}
	}
}

func (g *Gateway) pushFrame(state *world.SimulationState, updated []*world.Actor) {
	info := g.service.Registry().ConnectionInformation()

	msg := frameMessage{Kind: "simulation", State: state, UpdatedActors: updated}
	for accountId, conn := range info.ConnectedSocketsByAccountId {
		sender, ok := conn.(*wsConn)
		if !ok {
			continue
		}
		if err := sender.SendJSON(msg); err != nil {
			slog.Warn("pushing frame", "account_id", accountId, "error", err)
		}
	}

	// Mappings whose connection is gone locally should converge system-wide
	for _, socketId := range info.DisconnectableSocketIds {
		g.service.DisconnectSocket(socketId)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
