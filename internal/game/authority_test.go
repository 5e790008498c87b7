package game

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversus/reversus-server/internal/game/catalog"
)

func newTestAuthority(t *testing.T, ids ...string) *LocalAuthority {
	t.Helper()
	return NewLocalAuthority(newTestState(t, nil, ids...), zaptest.NewLogger(t))
}

func TestAuthorityApplyAccepted(t *testing.T) {
	auth := newTestAuthority(t)
	var card *catalog.Card
	auth.Inspect(func(s *State) { card = firstValueCard(s, "alice") })

	res, err := auth.Apply(Intent{Action: ActionPlayCard, PlayerID: "alice", CardID: card.ID})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Reason)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "alice", res.Snapshot.Viewer)
	assert.True(t, res.Snapshot.Players["alice"].PlayedValueCardThisTurn)
	assert.True(t, res.Snapshot.VerifyChecksum())
}

func TestAuthorityApplyRejected(t *testing.T) {
	auth := newTestAuthority(t)
	before, err := auth.Snapshot(context.Background())
	require.NoError(t, err)

	res, err := auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "bob"})
	require.NoError(t, err, "rule violations are results, not errors")
	assert.False(t, res.Accepted)
	assert.Equal(t, "it is not Bob's turn", res.Reason)
	assert.Greater(t, res.Snapshot.Version, before.Version)
	assert.Equal(t, "Rejected: it is not Bob's turn", res.Snapshot.Log[0].Message)
	assert.Equal(t, "alice", res.Snapshot.CurrentPlayer)

	res, err = auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "mallory"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestAuthorityApplyMalformed(t *testing.T) {
	auth := newTestAuthority(t)
	for _, intent := range []Intent{
		{Action: ActionEndTurn},
		{Action: ActionPlayCard, PlayerID: "alice"},
		{Action: "castSpell", PlayerID: "alice"},
		{Action: ActionAssignFieldEffect, PlayerID: "alice"},
	} {
		_, err := auth.Apply(intent)
		assert.ErrorIs(t, err, ErrInvalidIntent, "%+v", intent)
	}
}

func TestAuthorityHooksSeeChanges(t *testing.T) {
	auth := newTestAuthority(t)
	var versions []uint64
	auth.OnChange(func(s *State) { versions = append(versions, s.Version) })

	_, err := auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "bob"})
	require.NoError(t, err)
	_, err = auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "mallory"})
	require.NoError(t, err)

	assert.Len(t, versions, 1, "an unknown player leaves the state untouched")
}

func TestAuthorityRunSerializesSubmits(t *testing.T) {
	auth := newTestAuthority(t)
	auth.Inspect(func(s *State) { keepValueCards(s, "alice", 1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- auth.Run(ctx) }()
	require.Eventually(t, auth.running.Load, time.Second, time.Millisecond)
	assert.Error(t, auth.Run(ctx), "only one loop per authority")

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := auth.Submit(context.Background(), Intent{Action: ActionEndTurn, PlayerID: "alice"})
			if assert.NoError(t, err) && res.Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())

	snap, err := auth.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.CurrentPlayer)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAuthorityStopAnswersQueuedRequests(t *testing.T) {
	auth := newTestAuthority(t)
	var version uint64
	auth.Inspect(func(s *State) { version = s.Version })

	req := request{
		ctx:     context.Background(),
		intent:  Intent{Action: ActionSay, PlayerID: "alice", Message: "hi"},
		reply:   make(chan response, 1),
		stopped: make(chan struct{}),
	}
	auth.queue <- req

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, auth.Run(ctx), context.Canceled)

	select {
	case resp := <-req.reply:
		assert.ErrorIs(t, resp.err, ErrAuthorityStopped)
	case <-time.After(time.Second):
		t.Fatal("queued request was never answered")
	}
	assert.Empty(t, auth.queue)
	auth.Inspect(func(s *State) { assert.Equal(t, version, s.Version) })
}

func TestAuthoritySubmitReturnsWhenLoopStops(t *testing.T) {
	auth := newTestAuthority(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- auth.Run(ctx) }()
	require.Eventually(t, auth.running.Load, time.Second, time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	go auth.Inspect(func(*State) {
		close(held)
		<-release
	})
	<-held

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := auth.Submit(context.Background(), Intent{Action: ActionSay, PlayerID: "alice", Message: "hi"})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return len(auth.queue) > 0 }, time.Second, time.Millisecond)

	cancel()
	close(release)
	assert.ErrorIs(t, <-done, context.Canceled)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				assert.ErrorIs(t, err, ErrAuthorityStopped)
			}
		case <-time.After(time.Second):
			t.Fatal("submit blocked after the loop stopped")
		}
	}

	_, err := auth.Submit(context.Background(), Intent{Action: ActionSay, PlayerID: "bob", Message: "still here"})
	assert.NoError(t, err, "a stopped authority applies directly")
}

func TestAuthoritySubmitHonoursContext(t *testing.T) {
	auth := newTestAuthority(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := auth.Submit(ctx, Intent{Action: ActionEndTurn, PlayerID: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = auth.SnapshotFor(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthoritySubscribe(t *testing.T) {
	auth := newTestAuthority(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := auth.SubscribeAs(ctx, "bob")
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "bob", first.Viewer)
	assert.Nil(t, first.Players["alice"].Hand)

	_, err = auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "bob"})
	require.NoError(t, err)
	_, err = auth.Apply(Intent{Action: ActionEndTurn, PlayerID: "bob"})
	require.NoError(t, err)

	latest := <-ch
	assert.Equal(t, first.Version+2, latest.Version, "slow readers get the latest snapshot")

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSeatAuthority(t *testing.T) {
	auth := newTestAuthority(t)
	seat := auth.Seat("bob")
	ctx := context.Background()

	snap, err := seat.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.Viewer)
	assert.Nil(t, snap.Players["alice"].Hand)
	assert.Equal(t, 4, snap.Players["alice"].HandCount)
	assert.Len(t, snap.Hand(), 4)
	assert.True(t, snap.VerifyChecksum())

	_, err = seat.Submit(ctx, Intent{Action: ActionAssignFieldEffect, PlayerID: "bob", FieldEffect: "Azar"})
	assert.ErrorIs(t, err, ErrNotPermitted)

	res, err := seat.Submit(ctx, Intent{Action: ActionEndTurn, PlayerID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Accepted, "intents are stamped with the seat's player")
	assert.Equal(t, "bob", res.Snapshot.Viewer)

	full, err := auth.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, full.Players["alice"].Hand, 4)
	assert.NotEqual(t, full.Checksum, snap.Checksum)
}

func TestFieldEffectIntents(t *testing.T) {
	auth := newTestAuthority(t)

	res, err := auth.Apply(Intent{Action: ActionAssignFieldEffect, PlayerID: "bob", FieldEffect: "Azar"})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Len(t, res.Snapshot.ActiveFieldEffects, 1)
	assert.Equal(t, "bob", res.Snapshot.ActiveFieldEffects[0].AppliesTo)

	res, err = auth.Apply(Intent{Action: ActionAssignFieldEffect, PlayerID: "bob", FieldEffect: "Chuva de Sapos"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	res, err = auth.Apply(Intent{Action: ActionRemoveFieldEffect, PlayerID: "bob"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Snapshot.ActiveFieldEffects)
}

func TestSayIntent(t *testing.T) {
	auth := newTestAuthority(t)

	res, err := auth.Apply(Intent{Action: ActionSay, PlayerID: "bob", Message: "  good luck  "})
	require.NoError(t, err)
	require.True(t, res.Accepted, "speaking does not need the turn")
	assert.Equal(t, LogEntry{Type: LogDialogue, Message: "good luck", Speaker: "Bob", SpeakerID: "bob"}, res.Snapshot.Log[0])
	assert.Equal(t, "alice", res.Snapshot.CurrentPlayer)

	_, err = auth.Apply(Intent{Action: ActionSay, PlayerID: "bob", Message: "   "})
	assert.ErrorIs(t, err, ErrInvalidIntent)
	_, err = auth.Apply(Intent{Action: ActionSay, PlayerID: "bob", Message: strings.Repeat("é", MaxMessageLength+1)})
	assert.ErrorIs(t, err, ErrInvalidIntent)
}

func TestParseIntent(t *testing.T) {
	in, err := ParseIntent([]byte(`{"action":"playCard","playerId":"alice","cardId":"effect-3","targetId":"bob","options":{"isIndividualLock":true,"effectNameToApply":"Mais"}}`))
	require.NoError(t, err)
	require.NoError(t, in.Validate())

	play := in.Play()
	assert.Equal(t, "bob", play.TargetID)
	assert.True(t, play.Options.IsIndividualLock)
	assert.Equal(t, "Mais", play.Options.EffectNameToApply)

	_, err = ParseIntent([]byte(`{"action":`))
	assert.Error(t, err)
}
