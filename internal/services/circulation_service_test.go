package services

import (
	"context"
	"testing"

	"github.com/linguacrowd/go-corpus-backend/internal/domain"
)

func TestNext_NeverRepeatsForOneVoter(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	langID, audioID, _ := seedLanguageAndSamples(t, e.db)

	a, err := e.ledger.Submit(ctx, "author", domain.TranscriptionPayload(audioID, "first candidate"))
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	b, err := e.ledger.Submit(ctx, "author", domain.TranscriptionPayload(audioID, "second candidate"))
	if err != nil {
		t.Fatalf("submit b: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		c, err := e.circ.Next(ctx, "voter", domain.TaskTranscription, langID)
		if err != nil {
			t.Fatalf("pull %d: %v", i+1, err)
		}
		if c == nil {
			t.Fatalf("pull %d: pool exhausted early", i+1)
		}
		if seen[c.ID] {
			t.Fatalf("pull %d repeated contribution %s", i+1, c.ID)
		}
		seen[c.ID] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Fatalf("both candidates should have circulated, saw %v", seen)
	}

	// Exhausted: nil, not an error.
	c, err := e.circ.Next(ctx, "voter", domain.TaskTranscription, langID)
	if err != nil || c != nil {
		t.Fatalf("expected nil on exhaustion, got c=%v err=%v", c, err)
	}
}

func TestNext_ExcludesOwnSubmissions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	langID, audioID, _ := seedLanguageAndSamples(t, e.db)

	if _, err := e.ledger.Submit(ctx, "self", domain.TranscriptionPayload(audioID, "my own work")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	c, err := e.circ.Next(ctx, "self", domain.TaskTranscription, langID)
	if err != nil || c != nil {
		t.Fatalf("self-vote ban violated: c=%v err=%v", c, err)
	}
}

func TestNext_TwoVotersMayShareACandidate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	langID, audioID, _ := seedLanguageAndSamples(t, e.db)

	sub, err := e.ledger.Submit(ctx, "author", domain.TranscriptionPayload(audioID, "shared"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, voter := range []string{"v1", "v2"} {
		c, err := e.circ.Next(ctx, voter, domain.TaskTranscription, langID)
		if err != nil || c == nil {
			t.Fatalf("%s: c=%v err=%v", voter, c, err)
		}
		if c.ID != sub.ID {
			t.Fatalf("%s got %s", voter, c.ID)
		}
	}
}

func TestNext_SkippedPairStaysExcluded(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	langID, audioID, _ := seedLanguageAndSamples(t, e.db)

	sub, err := e.ledger.Submit(ctx, "author", domain.TranscriptionPayload(audioID, "skippable"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c, err := e.circ.Next(ctx, "voter", domain.TaskTranscription, langID)
	if err != nil || c == nil || c.ID != sub.ID {
		t.Fatalf("pull: c=%v err=%v", c, err)
	}
	if err := e.voting.Skip(ctx, "voter", sub.ID); err != nil {
		t.Fatalf("skip: %v", err)
	}
	c, err = e.circ.Next(ctx, "voter", domain.TaskTranscription, langID)
	if err != nil || c != nil {
		t.Fatalf("skipped pair re-selected: c=%v err=%v", c, err)
	}
}

func TestNext_InvalidKind(t *testing.T) {
	e := newEngine(t)
	if _, err := e.circ.Next(context.Background(), "voter", "proofreading", "l1"); err == nil {
		t.Fatalf("expected error for unknown task kind")
	}
}
