package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

// storeFactories lets every contract test run against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewInMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_SaveLoadVersioning(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			_, err := s.Load(ctx, "t-1")
			assert.ErrorIs(t, err, ErrNotFound)

			st := core.NewAgentState("t-1", core.PatternPlanExecute)
			st.BeginTurn(core.PatternPlanExecute, "analyze AAPL", 3, "plan")
			require.NoError(t, s.Save(ctx, st))
			assert.EqualValues(t, 1, st.Version)

			pe := st.Scratch.(*core.PlanExecuteState)
			pe.Plan = []string{"fetch price", "summarize"}
			st.Node = "execute"
			require.NoError(t, s.Save(ctx, st))
			assert.EqualValues(t, 2, st.Version)

			loaded, err := s.Load(ctx, "t-1")
			require.NoError(t, err)
			assert.EqualValues(t, 2, loaded.Version)
			assert.Equal(t, "execute", loaded.Node)
			assert.Equal(t, []string{"fetch price", "summarize"}, loaded.Scratch.(*core.PlanExecuteState).Plan)
			require.Len(t, loaded.Messages, 1)
			assert.Equal(t, "analyze AAPL", loaded.Messages[0].Content)

			stale := loaded.Clone()
			stale.Version = 1
			assert.ErrorIs(t, s.Save(ctx, stale), ErrVersionConflict)

			require.NoError(t, s.Delete(ctx, "t-1"))
			_, err = s.Load(ctx, "t-1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, s.Delete(ctx, "t-1"))
		})
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			st := core.NewAgentState("t-2", core.PatternReact)
			st.Append(core.NewUserMessage("hi"))
			require.NoError(t, s.Save(ctx, st))

			st.Append(core.NewUserMessage("not saved"))

			loaded, err := s.Load(ctx, "t-2")
			require.NoError(t, err)
			assert.Len(t, loaded.Messages, 1)
		})
	}
}

func TestStore_LockIsExclusivePerThread(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			ctx := context.Background()

			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := s.Lock(ctx, "shared")
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, maxInside)

			// distinct threads do not block each other
			u1, err := s.Lock(ctx, "a")
			require.NoError(t, err)
			u2, err := s.Lock(ctx, "b")
			require.NoError(t, err)
			u1()
			u2()
		})
	}
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	k := NewKeyedLocker()
	unlock, err := k.Lock(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	assert.Equal(t, 0, k.Len())
}

func TestSQLiteStore_List(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	for _, id := range []string{"react-1", "reflection-1"} {
		st := core.NewAgentState(id, core.PatternReact)
		require.NoError(t, s.Save(ctx, st))
	}

	rows, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSQLiteStore_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	states := map[string]*core.AgentState{}
	for _, id := range []string{"a", "b", "c"} {
		states[id] = core.NewAgentState(id, core.PatternReact)
		require.NoError(t, s.Save(ctx, states[id]))
		time.Sleep(2 * time.Millisecond)
	}
	states["a"].Node = "reason"
	require.NoError(t, s.Save(ctx, states["a"]))

	rows, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ThreadID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
	assert.True(t, rows[0].Updated.Equal(states["a"].Updated))
	assert.Equal(t, int64(2), rows[0].Version)
}
