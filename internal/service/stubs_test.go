package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/folio"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"

	"github.com/google/uuid"
)

// ── In-memory Repository Stubs ────────────────────────────────────────────────

type stubUsuarioRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.Usuario
	finds int
}

func newStubUsuarioRepo() *stubUsuarioRepo {
	return &stubUsuarioRepo{users: make(map[uuid.UUID]*model.Usuario)}
}

func (r *stubUsuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicado
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubUsuarioRepo) FindByEmail(_ context.Context, email string) (*model.Usuario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUsuarioRepo) List(_ context.Context) ([]model.Usuario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]model.Usuario, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *stubUsuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubUsuarioRepo) UpdateRol(_ context.Context, id uuid.UUID, rol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Rol = rol
	return nil
}

func (r *stubUsuarioRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type stubSesionRepo struct {
	mu        sync.Mutex
	revocados map[string]time.Duration
}

func newStubSesionRepo() *stubSesionRepo {
	return &stubSesionRepo{revocados: make(map[string]time.Duration)}
}

func (r *stubSesionRepo) Revocar(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revocados[tokenID] = ttl
	return nil
}

func (r *stubSesionRepo) Revocado(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revocados[tokenID]
	return ok, nil
}

// stubValeRepo allocates folios like folio.ModoLectura.
type stubValeRepo struct {
	mu    sync.Mutex
	vales []model.Vale
	lists int
}

func (r *stubValeRepo) Create(_ context.Context, v *model.Vale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ultimo := ""
	for _, existing := range r.vales {
		if ultimo == "" || folio.Comparar(existing.NumeroFormulario, ultimo) > 0 {
			ultimo = existing.NumeroFormulario
		}
	}
	numero, err := folio.Siguiente(ultimo)
	if err != nil {
		return err
	}
	v.NumeroFormulario = numero
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.vales = append(r.vales, clonarVale(*v))
	return nil
}

func (r *stubValeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Vale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vales {
		if v.ID == id {
			cp := clonarVale(v)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubValeRepo) List(_ context.Context) ([]model.Vale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]model.Vale, len(r.vales))
	for i, v := range r.vales {
		out[i] = clonarVale(v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return folio.Comparar(out[i].NumeroFormulario, out[j].NumeroFormulario) > 0
	})
	return out, nil
}

func (r *stubValeRepo) ListByFecha(ctx context.Context) ([]model.Vale, error) {
	out, _ := r.List(ctx)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreadoEn, out[j].CreadoEn
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return out, nil
}

func (r *stubValeRepo) Update(_ context.Context, v *model.Vale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.vales {
		if r.vales[i].ID == v.ID {
			r.vales[i] = clonarVale(*v)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubValeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.vales {
		if r.vales[i].ID == id {
			r.vales = append(r.vales[:i], r.vales[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubValeRepo) Import(_ context.Context, vales []model.Vale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range vales {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		r.vales = append(r.vales, clonarVale(v))
	}
	return nil
}

func clonarVale(v model.Vale) model.Vale {
	v.Insumos = append([]model.Insumo(nil), v.Insumos...)
	return v
}

// ── Collaborator Stubs ────────────────────────────────────────────────────────

type stubNotificador struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newStubNotificador() *stubNotificador {
	return &stubNotificador{subs: make(map[chan struct{}]struct{})}
}

func (n *stubNotificador) Notificar(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for c := range n.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *stubNotificador) Suscribir(ctx context.Context) (<-chan struct{}, error) {
	c := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[c] = struct{}{}
	n.mu.Unlock()
	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, c)
		close(c)
		n.mu.Unlock()
	}()
	return c, nil
}

func (n *stubNotificador) suscriptores() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

type stubPublicador struct {
	mu      sync.Mutex
	claves  []string
	eventos []ValeEvento
}

func (p *stubPublicador) Publicar(_ context.Context, clave string, evento any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claves = append(p.claves, clave)
	if e, ok := evento.(ValeEvento); ok {
		p.eventos = append(p.eventos, e)
	}
	return nil
}

type envio struct {
	valeID uuid.UUID
	email  string
}

type stubEncolador struct{ envios []envio }

func (e *stubEncolador) EnqueueEnvioVale(_ context.Context, valeID uuid.UUID, email string) error {
	e.envios = append(e.envios, envio{valeID: valeID, email: email})
	return nil
}
