package authority

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// handleRequest serves the synchronous channel. Every received request gets
// exactly one reply - including malformed and unrecognized ones, which get an
// ERROR reply so the caller never stalls.
func (s *Service) handleRequest(req messaging.Envelope) messaging.Envelope {
	ctx := context.Background()

	switch req.Kind {
	case messaging.KindAccountCreate:
		var p messaging.AccountPayload
		if err := req.Decode(&p); err != nil || p.Account == nil {
			return messaging.ErrorReply("BAD_PAYLOAD", "account record required")
		}
		return s.createAccount(ctx, p.Account)

	case messaging.KindAccountList:
		return s.reply(messaging.KindAccounts, messaging.AccountListPayload{Accounts: s.accounts.All()})

	case messaging.KindAccountGet:
		var p messaging.AccountGetPayload
		if err := req.Decode(&p); err != nil {
			return messaging.ErrorReply("BAD_PAYLOAD", "account id required")
		}
		return s.reply(messaging.KindAccount, messaging.AccountPayload{Account: s.accounts.ForId(p.AccountId)})

	case messaging.KindTokenIssue:
		var p messaging.TokenIssuePayload
		if err := req.Decode(&p); err != nil {
			return messaging.ErrorReply("BAD_PAYLOAD", "account id required")
		}
		token, err := s.tokens.Issue(ctx, p.AccountId)
		if err != nil {
			slog.Error("issuing token", "error", err)
			return messaging.ErrorReply("TOKEN_ISSUE_FAILED", "unable to issue token")
		}
		return s.reply(messaging.KindToken, messaging.TokenPayload{Token: token})

	case messaging.KindTokenLogin:
		var p messaging.TokenLoginPayload
		if err := req.Decode(&p); err != nil {
			return messaging.ErrorReply("BAD_PAYLOAD", "token required")
		}
		return s.loginToken(ctx, p.Token)

	case messaging.KindStateGet:
		return s.reply(messaging.KindState, messaging.StatePayload{State: s.states.State()})

	case messaging.KindActorList:
		return s.reply(messaging.KindActors, messaging.ActorListPayload{Actors: s.actors.All()})

	default:
		slog.Warn("unknown request kind", "kind", req.Kind)
		return messaging.ErrorReply("UNSUPPORTED_KIND", "unknown request kind "+req.Kind)
	}
}

// createAccount persists the record through the writable store, loads it into
// the cache, and announces the update to every transport worker. The reply
// and the broadcast are not ordered relative to each other.
func (s *Service) createAccount(ctx context.Context, account *world.Account) messaging.Envelope {
	if err := account.Validate(); err != nil {
		return messaging.ErrorReply("BAD_PAYLOAD", err.Error())
	}

	if err := s.accountStore.Upsert(ctx, account); err != nil {
		slog.Error("storing account", "account_id", account.Id, "error", err)
		return messaging.ErrorReply("STORE_FAILED", "unable to store account")
	}
	s.accounts.Put(account)

	s.publish(messaging.SubjectModelEvents, messaging.KindAccountUpdate, messaging.AccountUpdatePayload{Id: account.Id})

	return s.reply(messaging.KindAccount, messaging.AccountPayload{Account: account})
}

func (s *Service) loginToken(ctx context.Context, token string) messaging.Envelope {
	accountId, err := s.tokens.Consume(ctx, token)
	if err != nil && !errors.Is(err, ErrTokenInvalid) {
		slog.Error("consuming token", "error", err)
		return messaging.ErrorReply("TOKEN_LOGIN_FAILED", "unable to redeem token")
	}

	// An invalid token resolves to no account, not an error
	var account *world.Account
	if err == nil {
		account = s.accounts.ForId(accountId)
	}
	return s.reply(messaging.KindAccount, messaging.AccountPayload{Account: account})
}

// handleWorkerEvent relays socket lifecycle notices from transport workers
// back out to all transport workers, folding view saves into the account
// cache along the way.
func (s *Service) handleWorkerEvent(env messaging.Envelope) {
	switch env.Kind {
	case messaging.KindSocketConnect:
		var p messaging.SocketConnectPayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed socket connect event", "error", err)
			return
		}
		s.publish(messaging.SubjectModelEvents, messaging.KindSocketConnect, p)

	case messaging.KindSocketDisconnect:
		var p messaging.SocketDisconnectPayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed socket disconnect event", "error", err)
			return
		}
		s.publish(messaging.SubjectModelEvents, messaging.KindSocketDisconnect, p)

	case messaging.KindViewSave:
		var p messaging.ViewSavePayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed view save event", "error", err)
			return
		}
		account := s.accounts.ForId(p.AccountId)
		if account == nil {
			return
		}
		// Mutate a copy: the cached record is concurrently marshaled by the
		// request handler and the flush timer.
		updated := *account
		updated.ViewX = p.ViewX
		updated.ViewY = p.ViewY
		s.accounts.Update(&updated)
		s.publish(messaging.SubjectModelEvents, messaging.KindAccountUpdate, messaging.AccountUpdatePayload{Id: updated.Id})

	default:
		slog.Warn("unknown worker event kind", "kind", env.Kind)
	}
}

// handleFrame folds each simulation frame into the authority's caches, where
// the periodic flush will persist it.
func (s *Service) handleFrame(env messaging.Envelope) {
	if env.Kind != messaging.KindSimulation {
		slog.Warn("unknown frame kind", "kind", env.Kind)
		return
	}

	var p messaging.FramePayload
	if err := env.Decode(&p); err != nil {
		slog.Warn("malformed simulation frame", "error", err)
		return
	}

	if p.State != nil {
		s.states.Update(p.State)
	}
	s.actors.Update(p.UpdatedActors...)
}

func (s *Service) reply(kind string, payload any) messaging.Envelope {
	env, err := messaging.NewEnvelope(kind, payload)
	if err != nil {
		slog.Error("building reply", "kind", kind, "error", err)
		return messaging.ErrorReply("INTERNAL", "reply serialization failed")
	}
	return env
}

func (s *Service) publish(subject, kind string, payload any) {
	env, err := messaging.NewEnvelope(kind, payload)
	if err != nil {
		slog.Error("building broadcast", "kind", kind, "error", err)
		return
	}
	if err := s.bus.Publish(subject, env); err != nil {
		slog.Error("publishing broadcast", "kind", kind, "error", err)
	}
}
