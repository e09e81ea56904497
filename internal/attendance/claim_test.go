package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"checkin/internal/roster"
)

func newTestClaimer(t *testing.T) (*RedisClaimer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisClaimer(client, "", time.Hour), mr
}

func TestRedisClaimer_FirstStationWins(t *testing.T) {
	claimer, mr := newTestClaimer(t)
	ctx := context.Background()
	guest := roster.Guest{ID: "STD1G1", Name: "Pedro", Career: "Medicina"}
	first := RegisteredGuest{Guest: guest, RegisteredAt: fixedNow, RegisteredTime: "first"}
	second := RegisteredGuest{Guest: guest, RegisteredAt: fixedNow.Add(time.Minute), RegisteredTime: "second"}

	got, won, err := claimer.Claim(ctx, first)
	if err != nil || !won || got.RegisteredTime != "first" {
		t.Fatalf("expected first claim to win, got %+v won=%v err=%v", got, won, err)
	}
	if !mr.Exists("checkin:claim:STD1G1") {
		t.Error("expected the claim key under the default prefix")
	}
	if ttl := mr.TTL("checkin:claim:STD1G1"); ttl != time.Hour {
		t.Errorf("expected a one hour ttl, got %v", ttl)
	}

	got, won, err = claimer.Claim(ctx, second)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Error("second station must lose the claim")
	}
	if got.RegisteredTime != "first" || !got.RegisteredAt.Equal(fixedNow) || got.Career != "Medicina" {
		t.Errorf("expected the winning entry, got %+v", got)
	}
}

func TestRedisClaimer_Errors(t *testing.T) {
	claimer, mr := newTestClaimer(t)
	ctx := context.Background()
	entry := RegisteredGuest{Guest: roster.Guest{ID: "STD2G1", Name: "Marta"}, RegisteredAt: fixedNow}

	if err := mr.Set("checkin:claim:STD2G1", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, won, err := claimer.Claim(ctx, entry); err == nil || won {
		t.Errorf("expected a decode error for a corrupt claim, got won=%v err=%v", won, err)
	}

	mr.Close()
	entry.ID = "STD3G1"
	if _, won, err := claimer.Claim(ctx, entry); err == nil || won {
		t.Errorf("expected an error with redis down, got won=%v err=%v", won, err)
	}
}

func TestRegister_RedisClaimSharedAcrossServices(t *testing.T) {
	claimer, _ := newTestClaimer(t)
	storeA, storeB := newFakeStore(true), newFakeStore(true)
	stationA := newTestService(t, storeA, Options{Claimer: claimer})
	stationB := newTestService(t, storeB, Options{
		Claimer: claimer,
		Parser:  roster.NewParserWithClock(func() time.Time { return fixedNow }),
		Now:     func() time.Time { return fixedNow.Add(time.Minute) },
	})

	g, _ := stationA.Find("Laura")
	first, err := stationA.Register(context.Background(), g)
	if err != nil || first.Duplicate {
		t.Fatalf("expected station A to register, got %+v %v", first, err)
	}
	second, err := stationB.RegisterID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("station B: %v", err)
	}
	if !second.Duplicate || !second.Entry.RegisteredAt.Equal(first.Entry.RegisteredAt) {
		t.Errorf("station B must adopt station A's entry, got %+v", second)
	}
	if storeB.count("registered_guests") != 0 {
		t.Error("the losing station must not write the check-in")
	}
}
