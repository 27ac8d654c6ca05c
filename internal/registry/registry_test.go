package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/outpost-sh/outpost/internal/instance"
)

// stubInstance is the minimal handle needed to exercise the registry.
type stubInstance struct {
	id   instance.ID
	name string
}

func (s *stubInstance) ID() instance.ID                 { return s.id }
func (s *stubInstance) Name() string                    { return s.name }
func (s *stubInstance) Path() string                    { return "/tmp/" + s.name }
func (s *stubInstance) Port() int                       { return 25565 }
func (s *stubInstance) State() instance.State           { return instance.StateStopped }
func (s *stubInstance) Info() instance.Info             { return instance.Info{ID: s.id, Name: s.name} }
func (s *stubInstance) Start(context.Context) error     { return nil }
func (s *stubInstance) Stop(context.Context) error      { return nil }
func (s *stubInstance) PlayerCount() (int, error)       { return 0, nil }
func (s *stubInstance) MaxPlayerCount() (int, error)    { return 20, nil }
func (s *stubInstance) SetMaxPlayerCount(int) error     { return nil }
func (s *stubInstance) Players() ([]instance.Player, error) { return nil, nil }

func TestInsertGetRemove(t *testing.T) {
	r := New()
	inst := &stubInstance{id: instance.NewID(), name: "alpha"}

	if _, ok := r.Get(inst.ID()); ok {
		t.Fatal("Get() found instance before Insert")
	}

	r.Insert(inst)
	got, ok := r.Get(inst.ID())
	if !ok {
		t.Fatal("Get() did not find inserted instance")
	}
	if got.Name() != "alpha" {
		t.Errorf("Name() = %q, want %q", got.Name(), "alpha")
	}

	r.Remove(inst.ID())
	if _, ok := r.Get(inst.ID()); ok {
		t.Error("Get() found instance after Remove")
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	r := New()
	r.Remove(instance.NewID())
}

func TestListSnapshot(t *testing.T) {
	r := New()
	a := &stubInstance{id: instance.NewID(), name: "a"}
	b := &stubInstance{id: instance.NewID(), name: "b"}
	r.Insert(a)
	r.Insert(b)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d instances, want 2", len(list))
	}

	// Mutating the registry afterwards does not affect the snapshot.
	r.Remove(a.ID())
	if len(list) != 2 {
		t.Error("snapshot changed after Remove")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestConcurrentShapeMutation(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst := &stubInstance{id: instance.NewID(), name: "x"}
			r.Insert(inst)
			r.List()
			r.Remove(inst.ID())
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after all removals, want 0", r.Len())
	}
}
