package store

import (
	"sync"
	"testing"
	"time"
)

func TestKeyLocks_SerializesSamePair(t *testing.T) {
	l := newKeyLocks()

	unlock := l.lock("c", "k")
	acquired := make(chan struct{})
	go func() {
		u := l.lock("c", "k")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestKeyLocks_IndependentPairs(t *testing.T) {
	l := newKeyLocks()

	unlock := l.lock("c", "k1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		l.lock("c", "k2")()
		l.lock("other", "k1")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different pairs should not block each other")
	}
}

func TestKeyLocks_ReleasesEntries(t *testing.T) {
	l := newKeyLocks()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.lock("c", "k")()
		}()
	}
	wg.Wait()

	if n := l.size(); n != 0 {
		t.Errorf("expected no live entries, got %d", n)
	}
}

func TestEscapeSegment(t *testing.T) {
	cases := []string{"ideas", "documentation", ".", "..", "a/b", "/facebook/react::hooks", "with space", "ünïcode", "%41"}
	for _, c := range cases {
		e := escapeSegment(c)
		if e == "." || e == ".." || len(e) == 0 {
			t.Errorf("escapeSegment(%q) = %q is not a safe segment", c, e)
		}
		for _, r := range e {
			if r == '/' || r == '\\' {
				t.Errorf("escapeSegment(%q) = %q contains a separator", c, e)
			}
		}
		back, err := unescapeSegment(e)
		if err != nil || back != c {
			t.Errorf("unescapeSegment(%q) = %q, %v; want %q", e, back, err, c)
		}
	}
}

func TestObjectBackend_Names(t *testing.T) {
	b := &ObjectBackend{prefix: normalizePrefix("/membank/")}

	if got := b.objectName("documentation", "/facebook/react::hooks"); got != "membank/documentation/%2Ffacebook%2Freact::hooks.json" {
		t.Errorf("unexpected object name %q", got)
	}
	if got := normalizePrefix(""); got != "" {
		t.Errorf("expected empty prefix, got %q", got)
	}
}
