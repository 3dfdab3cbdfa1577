package messaging

import (
	"context"
	"fmt"

	"github.com/ironwood-sim/ironwood/internal/world"
)

// Client issues typed requests on the synchronous channel. One request is
// outstanding at a time per call; the authority answers in arrival order.
type Client struct {
	bus *Bus
}

func NewClient(bus *Bus) *Client {
	return &Client{bus: bus}
}

func (c *Client) request(ctx context.Context, kind string, payload any, wantKind string) (Envelope, error) {
	req, err := NewEnvelope(kind, payload)
	if err != nil {
		return Envelope{}, err
	}

	reply, err := c.bus.Request(ctx, req)
	if err != nil {
		return Envelope{}, err
	}

	if reply.Kind == KindError {
		var ep ErrorPayload
		if err := reply.Decode(&ep); err != nil {
			return Envelope{}, fmt.Errorf("%s rejected", kind)
		}
		return Envelope{}, fmt.Errorf("%s rejected: %s (%s)", kind, ep.Message, ep.Code)
	}
	if reply.Kind != wantKind {
		return Envelope{}, fmt.Errorf("unexpected %s reply kind %q", kind, reply.Kind)
	}

	return reply, nil
}

func (c *Client) AllAccounts(ctx context.Context) ([]*world.Account, error) {
	reply, err := c.request(ctx, KindAccountList, nil, KindAccounts)
	if err != nil {
		return nil, err
	}

	var p AccountListPayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	return p.Accounts, nil
}

func (c *Client) CreateAccount(ctx context.Context, account *world.Account) (*world.Account, error) {
	reply, err := c.request(ctx, KindAccountCreate, AccountPayload{Account: account}, KindAccount)
	if err != nil {
		return nil, err
	}

	var p AccountPayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	if p.Account == nil {
		return nil, fmt.Errorf("account was not stored")
	}
	return p.Account, nil
}

// Account returns one account record, or nil when absent.
func (c *Client) Account(ctx context.Context, accountId string) (*world.Account, error) {
	reply, err := c.request(ctx, KindAccountGet, AccountGetPayload{AccountId: accountId}, KindAccount)
	if err != nil {
		return nil, err
	}

	var p AccountPayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	return p.Account, nil
}

// IssueToken mints a single-use refresh token for the account.
func (c *Client) IssueToken(ctx context.Context, accountId string) (string, error) {
	reply, err := c.request(ctx, KindTokenIssue, TokenIssuePayload{AccountId: accountId}, KindToken)
	if err != nil {
		return "", err
	}

	var p TokenPayload
	if err := reply.Decode(&p); err != nil {
		return "", err
	}
	return p.Token, nil
}

// LoginToken redeems a refresh token for its account, invalidating the token.
// Returns nil when the token is unknown or already used.
func (c *Client) LoginToken(ctx context.Context, token string) (*world.Account, error) {
	reply, err := c.request(ctx, KindTokenLogin, TokenLoginPayload{Token: token}, KindAccount)
	if err != nil {
		return nil, err
	}

	var p AccountPayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	return p.Account, nil
}

func (c *Client) SimulationState(ctx context.Context) (*world.SimulationState, error) {
	reply, err := c.request(ctx, KindStateGet, nil, KindState)
	if err != nil {
		return nil, err
	}

	var p StatePayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	return p.State, nil
}

func (c *Client) AllActors(ctx context.Context) ([]*world.Actor, error) {
	reply, err := c.request(ctx, KindActorList, nil, KindActors)
	if err != nil {
		return nil, err
	}

	var p ActorListPayload
	if err := reply.Decode(&p); err != nil {
		return nil, err
	}
	return p.Actors, nil
}
