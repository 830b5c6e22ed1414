package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/audit"
	"github.com/aussiebroadwan/siteadmin/internal/auth/authz"
	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	ownerName     = "root"
	ownerPassword = "CorrectHorseBattery9"
)

// fastHasher keeps service tests quick; KDFv1 is covered in cryptox.
var fastHasher = cryptox.NewHasher(cryptox.KDFParams{Version: 1, Iterations: 1000, KeyLength: 64}, "")

// testClock is a settable clock shared by every component of a test core.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	core  *Core
	store store.Store
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.NewStore()
	t.Cleanup(func() { _ = st.Close() })

	az, err := authz.New(authz.DefaultDefinitions())
	require.NoError(t, err)

	clock := newTestClock()
	rec := audit.NewRecorder(store.NewAuditSink(st), audit.WithFallback(slogx.Discard()))

	core := NewCore(st, az, rec, CoreConfig{
		Hasher: fastHasher,
		Now:    clock.Now,
	})
	return &fixture{core: core, store: st, clock: clock}
}

func (f *fixture) bootstrap(t *testing.T) domain.Identity {
	t.Helper()
	owner, err := f.core.BootstrapOwner(context.Background(), ownerName, ownerPassword)
	require.NoError(t, err)
	return owner
}

// addIdentity creates an identity directly with role.
func (f *fixture) addIdentity(t *testing.T, username, role string) domain.Identity {
	t.Helper()
	id, err := f.core.Credentials.CreateIdentity(context.Background(), username, "password-"+username, role, "")
	require.NoError(t, err)
	return id
}

func (f *fixture) auditEntries(t *testing.T, action string) []domain.AuditEntry {
	t.Helper()
	entries, err := audit.Collect(f.core.Audit.Query(context.Background(), domain.AuditFilter{Action: action}))
	require.NoError(t, err)
	return entries
}
