package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
)

type viewFunc func(fn func(*state) error) error

// Identities

type identitiesRepo struct{ view viewFunc }

func (r *identitiesRepo) Create(ctx context.Context, id domain.Identity) error {
	return r.view(func(s *state) error {
		if _, ok := s.identities[id.ID]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := s.usernames[id.Username]; ok {
			return store.ErrAlreadyExists
		}
		id.RecoveryCodes = nil
		id.OTPAuthURL = ""
		s.identities[id.ID] = id
		s.usernames[id.Username] = id.ID
		return nil
	})
}

func (r *identitiesRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	var out domain.Identity
	err := r.view(func(s *state) error {
		v, ok := s.identities[id]
		if !ok {
			return store.ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (r *identitiesRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	var out domain.Identity
	err := r.view(func(s *state) error {
		id, ok := s.usernames[username]
		if !ok {
			return store.ErrNotFound
		}
		out = s.identities[id]
		return nil
	})
	return out, err
}

func (r *identitiesRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.view(func(s *state) error {
		n = len(s.identities)
		return nil
	})
	return n, err
}

func (r *identitiesRepo) update(id string, fn func(*domain.Identity)) error {
	return r.view(func(s *state) error {
		v, ok := s.identities[id]
		if !ok {
			return store.ErrNotFound
		}
		fn(&v)
		s.identities[id] = v
		return nil
	})
}

func (r *identitiesRepo) UpdateRole(ctx context.Context, id, role string) error {
	return r.update(id, func(i *domain.Identity) { i.Role = role })
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(id, func(i *domain.Identity) { i.PasswordHash = hash })
}

func (r *identitiesRepo) Deactivate(ctx context.Context, id string) error {
	return r.update(id, func(i *domain.Identity) { i.Active = false })
}

func (r *identitiesRepo) Delete(ctx context.Context, id string) error {
	return r.view(func(s *state) error {
		v, ok := s.identities[id]
		if !ok {
			return store.ErrNotFound
		}
		delete(s.identities, id)
		delete(s.usernames, v.Username)
		delete(s.recovery, id)
		return nil
	})
}

// Invitations

type invitationsRepo struct{ view viewFunc }

func (r *invitationsRepo) Create(ctx context.Context, inv domain.Invitation) error {
	return r.view(func(s *state) error {
		if _, ok := s.invitations[inv.ID]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := s.tokenHashes[inv.TokenHash]; ok {
			return store.ErrAlreadyExists
		}
		inv.Token = ""
		s.invitations[inv.ID] = inv
		s.tokenHashes[inv.TokenHash] = inv.ID
		return nil
	})
}

func (r *invitationsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.Invitation, error) {
	var out domain.Invitation
	err := r.view(func(s *state) error {
		id, ok := s.tokenHashes[hash]
		if !ok {
			return store.ErrNotFound
		}
		out = s.invitations[id]
		return nil
	})
	return out, err
}

func (r *invitationsRepo) MarkUsed(ctx context.Context, id, usedBy string) error {
	return r.view(func(s *state) error {
		inv, ok := s.invitations[id]
		if !ok {
			return store.ErrNotFound
		}
		if inv.Used {
			return store.ErrConflict
		}
		inv.Used = true
		inv.UsedBy = usedBy
		s.invitations[id] = inv
		return nil
	})
}

// Recovery codes

type recoveryCodesRepo struct{ view viewFunc }

func (r *recoveryCodesRepo) Create(ctx context.Context, identityID string, hashes []string) error {
	return r.view(func(s *state) error {
		if _, ok := s.identities[identityID]; !ok {
			return store.ErrNotFound
		}
		set := s.recovery[identityID]
		if set == nil {
			set = make(map[string]bool, len(hashes))
			s.recovery[identityID] = set
		}
		for _, h := range hashes {
			set[h] = true
		}
		return nil
	})
}

func (r *recoveryCodesRepo) Consume(ctx context.Context, identityID, hash string) (bool, error) {
	var found bool
	err := r.view(func(s *state) error {
		if set := s.recovery[identityID]; set[hash] {
			delete(set, hash)
			found = true
		}
		return nil
	})
	return found, err
}

func (r *recoveryCodesRepo) Count(ctx context.Context, identityID string) (int, error) {
	var n int
	err := r.view(func(s *state) error {
		n = len(s.recovery[identityID])
		return nil
	})
	return n, err
}

// Audit entries

type auditRepo struct{ view viewFunc }

func (r *auditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	e.Details = maps.Clone(e.Details)
	return r.view(func(s *state) error {
		// Keep ascending ID order even if entries arrive slightly out of order.
		i := sort.Search(len(s.audit), func(i int) bool { return s.audit[i].ID > e.ID })
		if i > 0 && s.audit[i-1].ID == e.ID {
			return store.ErrAlreadyExists
		}
		s.audit = slices.Insert(s.audit, i, e)
		if s.auditCap > 0 && len(s.audit) > s.auditCap {
			s.audit = slices.Clone(s.audit[len(s.audit)-s.auditCap:])
		}
		return nil
	})
}

func (r *auditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := r.view(func(s *state) error {
		for i := len(s.audit) - 1; i >= 0; i-- {
			e := s.audit[i]
			if !f.Matches(e) {
				continue
			}
			e.Details = maps.Clone(e.Details)
			out = append(out, e)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *auditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.view(func(s *state) error {
		kept := s.audit[:0:0]
		for _, e := range s.audit {
			if e.Timestamp.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		s.audit = kept
		return nil
	})
	return n, err
}
