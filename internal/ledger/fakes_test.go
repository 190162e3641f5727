package ledger

import (
	"context"
	"errors"
	"sync"

	"gitlab.com/yelinaung/cashflow-ledger/internal/authz"
	"gitlab.com/yelinaung/cashflow-ledger/internal/events"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gitlab.com/yelinaung/cashflow-ledger/internal/repository/memory"
	"gitlab.com/yelinaung/cashflow-ledger/internal/transcription"
)

func role(name string, perms models.RolePermissionSet) models.Role {
	return models.Role{Name: name, Permissions: perms}
}

func perm(scope models.Scope, actions ...string) models.ResourcePermission {
	p := models.ResourcePermission{Actions: map[string]bool{}, Scope: scope}
	for _, a := range actions {
		p.Actions[a] = true
	}
	return p
}

var (
	employeeRole = role("dipendente", models.RolePermissionSet{
		authz.ResourceExpenses: perm(models.ScopeOwn, authz.ActionCreate, authz.ActionRead, authz.ActionUpdate),
	})
	accountantRole = role("contabile", models.RolePermissionSet{
		authz.ResourceExpenses: perm(models.ScopeCompany, authz.ActionCreate, authz.ActionRead, authz.ActionUpdate, authz.ActionDelete),
		authz.ResourceIncomes:  perm(models.ScopeCompany, authz.ActionCreate, authz.ActionRead, authz.ActionUpdate, authz.ActionDelete),
	})
	superRole = role("super_admin", models.RolePermissionSet{
		authz.ResourceExpenses: perm(models.ScopeGlobal, authz.ActionCreate, authz.ActionRead),
		authz.ResourceIncomes:  perm(models.ScopeGlobal, authz.ActionCreate, authz.ActionRead),
	})
)

func members() *memory.MembershipStore {
	m := memory.NewMembershipStore()
	m.Assign("alice", "acme", employeeRole)
	m.Assign("bob", "acme", accountantRole)
	m.Assign("root", "acme", superRole)
	m.Assign("dave", "other", accountantRole)
	return m
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RecordEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (*transcription.Transcript, error) {
	if len(audio) == 0 {
		return nil, transcription.ErrEmptyAudio
	}
	if f.err != nil {
		return nil, f.err
	}
	return &transcription.Transcript{Text: f.text}, nil
}

var errExtractorDown = errors.New("extractor down")
