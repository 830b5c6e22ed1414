package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/storetest"
	"github.com/aussiebroadwan/siteadmin/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.NewStore()
	})
}

func TestAuditCapacity(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(memory.WithAuditCapacity(3))

	var ids []string
	for i := range 5 {
		ts := time.Unix(int64(1000+i), 0).UTC()
		id := idx.NewAt(ts).String()
		ids = append(ids, id)
		require.NoError(t, st.AuditEntries().Append(ctx, domain.AuditEntry{ID: id, Timestamp: ts, Action: "X"}))
	}

	got, err := st.AuditEntries().List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, ids[4], got[0].ID)
	require.Equal(t, ids[2], got[2].ID)
}

func TestTx_CancelledWhileWaiting(t *testing.T) {
	st := memory.NewStore()

	tx, err := st.Tx(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = st.Tx(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback())
	require.Error(t, tx.Commit(), "tx is finished")

	// The abandoned waiter must not leave the store locked.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		tx, err := st.Tx(ctx)
		if err != nil {
			return false
		}
		_ = tx.Rollback()
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	st := memory.NewStore()
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Close())
	require.Error(t, st.Ping(context.Background()))
}
