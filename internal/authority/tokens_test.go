package authority

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pixil98/go-testutil"
)

func TestTokenIssueAndConsume(t *testing.T) {
	tokens := NewTokenStore(newFakeStore[*TokenRecord]())

	token, err := tokens.Issue(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "token length", len(token), 64)

	accountId, err := tokens.Consume(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "account", accountId, "acct-1")
}

func TestTokenConsume_SingleUse(t *testing.T) {
	tokens := NewTokenStore(newFakeStore[*TokenRecord]())

	token, err := tokens.Issue(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = tokens.Consume(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = tokens.Consume(context.Background(), token)
	testutil.AssertEqual(t, "error", err, ErrTokenInvalid, cmpopts.EquateErrors())
}

func TestTokenConsume_Unknown(t *testing.T) {
	tokens := NewTokenStore(newFakeStore[*TokenRecord]())

	_, err := tokens.Consume(context.Background(), "never-issued")
	testutil.AssertEqual(t, "error", err, ErrTokenInvalid, cmpopts.EquateErrors())
}

func TestTokensAreUnique(t *testing.T) {
	tokens := NewTokenStore(newFakeStore[*TokenRecord]())

	a, err := tokens.Issue(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := tokens.Issue(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Error("expected distinct tokens")
	}
}
