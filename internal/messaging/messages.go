package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/ironwood-sim/ironwood/internal/world"
)

// The bus carries four fixed channels on well-known subjects; peers locate
// each channel without discovery.
const (
	// SubjectModelAPI is the synchronous request/reply channel: every request
	// receives exactly one reply, answered by the authority role in arrival
	// order.
	SubjectModelAPI = "model.api"

	// SubjectModelEvents fans account and socket lifecycle notices out from
	// the authority role to every transport worker.
	SubjectModelEvents = "model.events"

	// SubjectWorkerEvents collects socket connect/disconnect/view-save events
	// from transport workers at the authority role.
	SubjectWorkerEvents = "worker.events"

	// SubjectSimulationFrames delivers each computed simulation frame to the
	// authority role and every transport worker.
	SubjectSimulationFrames = "simulation.frames"
)

// Request kinds on the synchronous channel.
const (
	KindAccountCreate = "ACCOUNT:CREATE"
	KindAccountList   = "ACCOUNT:LIST"
	KindAccountGet    = "ACCOUNT:GET"
	KindTokenIssue    = "TOKEN:ISSUE"
	KindTokenLogin    = "TOKEN:LOGIN"
	KindStateGet      = "SIMULATION_STATE:GET"
	KindActorList     = "ACTOR:LIST"
)

// Reply kinds on the synchronous channel. Every request is answered, and an
// unrecognized request kind is answered with KindError rather than silence.
const (
	KindAccount  = "ACCOUNT"
	KindAccounts = "ACCOUNTS"
	KindToken    = "TOKEN"
	KindState    = "SIMULATION_STATE"
	KindActors   = "ACTORS"
	KindError    = "ERROR"
)

// Broadcast kinds.
const (
	KindSocketConnect    = "SOCKET:CONNECT"
	KindSocketDisconnect = "SOCKET:DISCONNECT"
	KindViewSave         = "SOCKET:VIEW:SAVE"
	KindAccountUpdate    = "ACCOUNT:UPDATE"
	KindSimulation       = "SIMULATION"
)

// Envelope is the unit of transport on every bus channel. The kind tag is
// validated before the payload is decoded.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(kind string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Kind: kind}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: data}, nil
}

// Decode unmarshals the payload after the caller has matched the kind tag.
func (e Envelope) Decode(into any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Payload, into); err != nil {
		return fmt.Errorf("unmarshalling %s payload: %w", e.Kind, err)
	}
	return nil
}

type AccountPayload struct {
	// Account is nil when the requested record is absent
	Account *world.Account `json:"account"`
}

type AccountListPayload struct {
	Accounts []*world.Account `json:"accounts"`
}

type AccountGetPayload struct {
	AccountId string `json:"accountId"`
}

type TokenIssuePayload struct {
	AccountId string `json:"accountId"`
}

type TokenLoginPayload struct {
	Token string `json:"token"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type StatePayload struct {
	State *world.SimulationState `json:"state"`
}

type ActorListPayload struct {
	Actors []*world.Actor `json:"actors"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SocketConnectPayload struct {
	AccountId string `json:"accountId"`
	SocketId  string `json:"socketId"`
}

type SocketDisconnectPayload struct {
	SocketId string `json:"socketId"`
}

type ViewSavePayload struct {
	AccountId string `json:"accountId"`
	ViewX     int    `json:"viewX"`
	ViewY     int    `json:"viewY"`
}

type AccountUpdatePayload struct {
	Id string `json:"id"`
}

type FramePayload struct {
	State         *world.SimulationState `json:"state"`
	UpdatedActors []*world.Actor         `json:"updatedActors"`
}

// ErrorReply builds a KindError envelope; used for every request the
// responder cannot serve so the caller never stalls awaiting a reply.
func ErrorReply(code, message string) Envelope {
	env, err := NewEnvelope(KindError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		// ErrorPayload always marshals
		return Envelope{Kind: KindError}
	}
	return env
}
