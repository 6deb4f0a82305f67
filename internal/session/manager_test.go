package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bluedex/internal/alias"
	"github.com/go-go-golems/bluedex/internal/clustertest"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/lifecycle"
	"github.com/go-go-golems/bluedex/internal/session"
)

func newManager(gw *clustertest.Gateway) *session.Manager {
	registry := alias.New(gw)
	lc := lifecycle.New(gw, func(string) ([]byte, error) { return []byte(`{}`), nil })
	probe := health.New(gw)
	coordinator := deploy.New(gw, registry, lc, probe)
	return session.New(gw, lc, coordinator, probe)
}

func doc(id string) map[string]interface{} { return map[string]interface{}{"id": id} }

func TestStart_AllocatesFreshBlueStagingIndex(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "products-test", deploy.StrategySafe, 0)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Blue, s.TargetColor)
	assert.Equal(t, session.StatusActive, s.Status)
	assert.True(t, gw.IndexExistsNow(s.TargetIndex))
}

func TestStart_RejectsBlankAlias(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	_, err := m.Start(context.Background(), "", deploy.StrategySafe, 0)
	require.Error(t, err)
}

func TestProcessBatch_UpdatesCountersMonotonically(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	result, err := m.ProcessBatch(ctx, s.ID, []map[string]interface{}{doc("A"), doc("B")})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.TotalProcessed)

	result2, err := m.ProcessBatch(ctx, s.ID, []map[string]interface{}{doc("C")})
	require.NoError(t, err)
	assert.Equal(t, 3, result2.TotalProcessed)
	assert.Equal(t, 2, result2.BatchNumber)
}

// S5 — duplicate ids within one batch are rejected before any bulk
// call, and session counters stay untouched.
func TestProcessBatch_RejectsDuplicateIdsWithoutWriting(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	_, err = m.ProcessBatch(ctx, s.ID, []map[string]interface{}{doc("X"), doc("Y"), doc("X")})
	require.Error(t, err)

	snap, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalBatches)
	assert.Equal(t, 0, snap.TotalDocuments)
	assert.Equal(t, 0, gw.DocCount(s.TargetIndex))
}

func TestProcessBatch_RejectsEmptyBatch(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	_, err = m.ProcessBatch(ctx, s.ID, nil)
	require.Error(t, err)
}

func TestProcessBatch_RejectsOverLimitBatch(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	tooMany := make([]map[string]interface{}, session.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = map[string]interface{}{}
	}
	_, err = m.ProcessBatch(ctx, s.ID, tooMany)
	require.Error(t, err)
}

func TestProcessBatch_ExactLimitAccepted(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	exactly := make([]map[string]interface{}, session.MaxBatchSize)
	for i := range exactly {
		exactly[i] = map[string]interface{}{}
	}
	result, err := m.ProcessBatch(ctx, s.ID, exactly)
	require.NoError(t, err)
	assert.Equal(t, session.MaxBatchSize, result.Successful)
}

func TestComplete_AutoSwapBindsAlias(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategyAutoSwap, 0)
	require.NoError(t, err)

	_, err = m.ProcessBatch(ctx, s.ID, []map[string]interface{}{doc("A"), doc("B")})
	require.NoError(t, err)

	state, err := m.Complete(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, deploy.StatusCompleted, state.Status)
	assert.Equal(t, s.TargetIndex, state.ActiveIndex)
}

func TestComplete_SafeLeavesAliasUnbound(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	_, err = m.ProcessBatch(ctx, s.ID, []map[string]interface{}{doc("A")})
	require.NoError(t, err)

	state, err := m.Complete(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, deploy.StatusReadyForSwap, state.Status)
	assert.Equal(t, s.TargetIndex, state.StagingIndex)
}

// cancel(session) leaves no index with the session's targetIndex name.
func TestCancel_RemovesTargetIndex(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s, err := m.Start(ctx, "p", deploy.StrategySafe, 0)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, s.ID))
	assert.False(t, gw.IndexExistsNow(s.TargetIndex))
}

func TestGetSession_UnknownIdIsNotFound(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	_, err := m.GetSession("nonexistent")
	require.Error(t, err)
}

func TestListActive_OnlyReturnsActiveSessions(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	s1, err := m.Start(ctx, "p1", deploy.StrategySafe, 0)
	require.NoError(t, err)
	_, err = m.Start(ctx, "p2", deploy.StrategySafe, 0)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, s1.ID))

	active := m.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "p2", active[0].Alias)
}

// S6 — a session idle past SessionTimeout is swept to expired and
// dropped from the active set; a session still within the timeout is
// left untouched.
func TestSweepExpiredSessions_ExpiresIdleSessionsPastTimeout(t *testing.T) {
	gw := clustertest.New()
	m := newManager(gw)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return clock })

	stale, err := m.Start(ctx, "stale", deploy.StrategySafe, 0)
	require.NoError(t, err)

	clock = clock.Add(session.SessionTimeout + time.Minute)
	fresh, err := m.Start(ctx, "fresh", deploy.StrategySafe, 0)
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)
	m.SweepExpiredSessions()

	_, err = m.GetSession(stale.ID)
	require.Error(t, err, "expired session must be removed from the active set")

	snap, err := m.GetSession(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, snap.Status)
}
