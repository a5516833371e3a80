package storage

import (
	"context"
	"testing"
	"time"
)

func createTestPoll(t *testing.T, storage *SqliteStorage, id string, createdAt time.Time) {
	t.Helper()
	err := storage.CreatePoll(context.Background(), Poll{
		ID:       id,
		Question: "Quel film samedi ?",
		Options: []PollOption{
			{ID: "1", Label: "Inception"},
			{ID: "2", Label: "Parasite"},
		},
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
}

func TestSqliteStoragePollLifecycle(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Now()
	createTestPoll(t, storage, "p1", base)
	createTestPoll(t, storage, "p2", base.Add(time.Minute))

	latest, err := storage.LatestOpenPoll(ctx)
	if err != nil || latest == nil {
		t.Fatalf("LatestOpenPoll = %v, %v", latest, err)
	}
	if latest.ID != "p2" {
		t.Errorf("latest open poll = %s, want p2", latest.ID)
	}
	if label, ok := latest.Option("2"); !ok || label != "Parasite" {
		t.Errorf("Option(2) = %q, %v", label, ok)
	}
	if id, ok := latest.OptionByLabel("Inception"); !ok || id != "1" {
		t.Errorf("OptionByLabel = %q, %v", id, ok)
	}

	closed, err := storage.ClosePoll(ctx, "p2")
	if err != nil || !closed {
		t.Fatalf("ClosePoll = %v, %v", closed, err)
	}
	closed, _ = storage.ClosePoll(ctx, "p2")
	if closed {
		t.Error("closing twice should report false")
	}

	latest, _ = storage.LatestOpenPoll(ctx)
	if latest == nil || latest.ID != "p1" {
		t.Errorf("after close, latest open = %+v, want p1", latest)
	}

	p2, _ := storage.PollByID(ctx, "p2")
	if p2 == nil || !p2.IsClosed {
		t.Errorf("p2 = %+v, want closed", p2)
	}

	missing, err := storage.PollByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("PollByID(nope) = %+v, %v", missing, err)
	}
}

func TestSqliteStoragePollVotes(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	createTestPoll(t, storage, "p1", time.Now())
	alice, _ := storage.MemberID(ctx, "Alice")
	bob, _ := storage.MemberID(ctx, "Bob")

	changed, err := storage.UpsertVote(ctx, "p1", alice, "1")
	if err != nil || changed {
		t.Fatalf("first vote = %v, %v", changed, err)
	}
	changed, err = storage.UpsertVote(ctx, "p1", alice, "2")
	if err != nil || !changed {
		t.Fatalf("changed vote = %v, %v", changed, err)
	}
	_, _ = storage.UpsertVote(ctx, "p1", bob, "2")

	counts, err := storage.VoteCounts(ctx, "p1")
	if err != nil {
		t.Fatalf("VoteCounts failed: %v", err)
	}
	if counts["1"] != 0 || counts["2"] != 2 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSqliteStoragePollWAMessageID(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	createTestPoll(t, storage, "p1", time.Now())

	ok, err := storage.SetPollWAMessageID(ctx, "p1", "wamid.123")
	if err != nil || !ok {
		t.Fatalf("SetPollWAMessageID = %v, %v", ok, err)
	}
	ok, _ = storage.SetPollWAMessageID(ctx, "ghost", "wamid.456")
	if ok {
		t.Error("unknown poll should report false")
	}

	poll, err := storage.PollByWAMessageID(ctx, "wamid.123")
	if err != nil || poll == nil || poll.ID != "p1" {
		t.Errorf("PollByWAMessageID = %+v, %v", poll, err)
	}
}
