package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"

	"socksrotate/internal/catalog"
	"socksrotate/internal/proxyrecord"
)

func TestManagerStartFailsOnEmptyCatalog(t *testing.T) {
	m := NewManager(catalog.New(nil), 20000, time.Second, testTarget, 2*time.Second)
	if err := m.Start(make(chan struct{})); !errors.Is(err, ErrProxyNotSet) {
		t.Fatalf("Start err = %v, want ErrProxyNotSet", err)
	}
}

func TestCreateServerAndStopServer(t *testing.T) {
	recA := fakeUpstream(t)
	m := NewManager(catalog.New([]proxyrecord.Record{recA}), freePort(t), 0, testTarget, 2*time.Second)

	addr, err := m.CreateServer(recA)
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	if addr == nil {
		t.Fatal("CreateServer returned nil address")
	}

	m.lsMu.Lock()
	found := len(m.listeners) == 1
	m.lsMu.Unlock()
	if !found {
		t.Fatal("listener not discoverable in the set after CreateServer returns")
	}

	if err := m.StopServer(recA); err != nil {
		t.Fatalf("StopServer: %v", err)
	}

	m.lsMu.Lock()
	remaining := len(m.listeners)
	m.lsMu.Unlock()
	if remaining != 0 {
		t.Errorf("listener set still has %d entries after StopServer", remaining)
	}
}

func TestStopServerNotFound(t *testing.T) {
	m := NewManager(catalog.New(nil), freePort(t), 0, testTarget, 2*time.Second)
	unknown := proxyrecord.Record{Host: "9.9.9.9", Port: 1080}
	if err := m.StopServer(unknown); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("StopServer err = %v, want ErrServerNotFound", err)
	}
}

func TestPortAllocatorUniquenessUnderConcurrency(t *testing.T) {
	rec := fakeUpstream(t)
	m := NewManager(catalog.New([]proxyrecord.Record{rec}), freePort(t), 0, testTarget, 2*time.Second)

	const n = 8
	addrs := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := m.CreateServer(rec)
			if err != nil {
				t.Errorf("CreateServer: %v", err)
				return
			}
			addrs[i] = addr.String()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if seen[a] {
			t.Errorf("duplicate listener address %s", a)
		}
		seen[a] = true
	}
}

func TestRotationFairnessVisitsEveryProxyOnce(t *testing.T) {
	recA := fakeUpstream(t)
	recB := fakeUpstream(t)
	cat := catalog.New([]proxyrecord.Record{recA, recB})

	m := NewManager(cat, freePort(t), 50*time.Millisecond, testTarget, 2*time.Second)

	m.catMu.Lock()
	initial, _ := m.cat.Next()
	m.catMu.Unlock()
	if _, err := m.CreateServer(initial); err != nil {
		t.Fatalf("CreateServer: %v", err)
	}

	seen := map[string]bool{initial.Addr(): true}
	for i := 0; i < 2; i++ {
		time.Sleep(70 * time.Millisecond)
		m.lsMu.Lock()
		l := m.listeners[0]
		m.lsMu.Unlock()
		m.rotateTick()
		seen[l.GetProxy().Addr()] = true
	}

	if len(seen) != 2 {
		t.Errorf("expected both proxies to be visited over N ticks, saw %v", seen)
	}
}
