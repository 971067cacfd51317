// Package fakes holds in-memory doubles of the admin and verification stores, used by handler and service tests.
package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/verification"
)

type AdminRepo struct {
	mu     sync.Mutex
	admins map[string]*admin.Admin
	Err    error
}

func NewAdminRepo(admins ...*admin.Admin) *AdminRepo {
	r := &AdminRepo{
		admins: map[string]*admin.Admin{},
	}
	for _, a := range admins {
		r.Put(a)
	}
	return r
}

func (r *AdminRepo) Put(a *admin.Admin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[a.ID] = a
}

func (r *AdminRepo) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, id)
}

func (r *AdminRepo) GetByEmail(_ context.Context, email string) (*admin.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	email = admin.NormalizeEmail(email)
	for _, a := range r.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, admin.ErrAdminNotFound
}

func (r *AdminRepo) GetByID(_ context.Context, id string) (*admin.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if a, ok := r.admins[id]; ok {
		return a, nil
	}
	return nil, admin.ErrAdminNotFound
}

// CodeStore keeps one code per admin, same as the real stores.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]verification.Code
	Err   error
}

var _ verification.Store = (*CodeStore)(nil)

func NewCodeStore() *CodeStore {
	return &CodeStore{
		codes: map[string]verification.Code{},
	}
}

func (s *CodeStore) Create(_ context.Context, adminID, code string, expiresAt time.Time) (*verification.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c := verification.Code{
		AdminID:   adminID,
		Code:      code,
		ExpiresAt: expiresAt,
	}
	s.codes[adminID] = c
	return &c, nil
}

func (s *CodeStore) Consume(_ context.Context, adminID, code string, now time.Time) (*verification.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.codes[adminID]
	if !ok || c.Code != code || c.IsExpired(now) {
		return nil, verification.ErrCodeNotFound
	}
	delete(s.codes, adminID)
	return &c, nil
}

func (s *CodeStore) Get(adminID string) (verification.Code, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[adminID]
	return c, ok
}

type SentCode struct {
	Email string
	Code  string
}

// Dispatcher records sent codes instead of mailing them.
type Dispatcher struct {
	mu   sync.Mutex
	Sent []SentCode
	Err  error
}

func (d *Dispatcher) SendVerificationCode(_ context.Context, email, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Sent = append(d.Sent, SentCode{Email: email, Code: code})
	return nil
}

func (d *Dispatcher) LastCode() (SentCode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sent) == 0 {
		return SentCode{}, false
	}
	return d.Sent[len(d.Sent)-1], true
}

func (d *Dispatcher) SentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Sent)
}
