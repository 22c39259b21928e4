package collector

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// recordingNotifier captures published events in order for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) CaptureCreated(uid string, requestID int) {
	n.record(fmt.Sprintf("created:%s:%d", uid, requestID))
}

func (n *recordingNotifier) CaptureDeleted(uid string, requestID int) {
	n.record(fmt.Sprintf("deleted:%s:%d", uid, requestID))
}

func (n *recordingNotifier) CollectorDeleted(uid string) {
	n.record("collector-deleted:" + uid)
}

func (n *recordingNotifier) record(ev string) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	copy(out, n.events)
	return out
}

func TestCreateCollector(t *testing.T) {
	s := NewStore()
	uid, tok := s.CreateCollector()

	if len(uid) != 8 {
		t.Fatalf("uid length = %d, want 8", len(uid))
	}
	if tok == "" {
		t.Fatal("empty token")
	}
	if !s.Exists(uid) {
		t.Fatal("created collector does not exist")
	}
	if s.Exists("NOPE1234") {
		t.Fatal("unknown uid reported as existing")
	}

	captures, err := s.List(uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(captures) != 0 {
		t.Fatalf("new collector has %d captures, want 0", len(captures))
	}
}

func TestCreateCollector_ConcurrentUidsDistinct(t *testing.T) {
	s := NewStore()

	const n = 200
	uids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uid, _ := s.CreateCollector()
			uids <- uid
		}()
	}
	wg.Wait()
	close(uids)

	seen := make(map[string]bool)
	for uid := range uids {
		if seen[uid] {
			t.Fatalf("duplicate uid allocated: %s", uid)
		}
		seen[uid] = true
	}
	if len(seen) != n {
		t.Fatalf("allocated %d distinct uids, want %d", len(seen), n)
	}
}

func TestAppend_SequenceIds(t *testing.T) {
	s := NewStore()
	uid, _ := s.CreateCollector()

	for i := 1; i <= 5; i++ {
		c, err := s.Append(uid, CaptureInput{Method: "POST", Body: "hello"})
		if err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
		if c.RequestID != i {
			t.Fatalf("RequestID = %d, want %d", c.RequestID, i)
		}
	}

	// Ids are never reused: delete 3, append, expect 6.
	if ok, err := s.DeleteCapture(uid, 3); err != nil || !ok {
		t.Fatalf("DeleteCapture(3) = %v, %v", ok, err)
	}
	c, err := s.Append(uid, CaptureInput{Method: "GET"})
	if err != nil {
		t.Fatalf("Append after delete: %v", err)
	}
	if c.RequestID != 6 {
		t.Fatalf("RequestID after delete = %d, want 6", c.RequestID)
	}

	captures, err := s.List(uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantIds := []int{1, 2, 4, 5, 6}
	if len(captures) != len(wantIds) {
		t.Fatalf("got %d captures, want %d", len(captures), len(wantIds))
	}
	for i, c := range captures {
		if c.RequestID != wantIds[i] {
			t.Fatalf("captures[%d].RequestID = %d, want %d", i, c.RequestID, wantIds[i])
		}
	}
}

func TestAppend_UnknownCollector(t *testing.T) {
	s := NewStore()
	if _, err := s.Append("DEADBEEF", CaptureInput{Method: "GET"}); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
}

func TestAppend_ConcurrentNoLostOrDuplicateIds(t *testing.T) {
	s := NewStore()
	uid, _ := s.CreateCollector()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Append(uid, CaptureInput{Method: "POST"}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	captures, err := s.List(uid)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(captures) != n {
		t.Fatalf("got %d captures, want %d", len(captures), n)
	}
	seen := make(map[int]bool)
	for _, c := range captures {
		if c.RequestID < 1 || c.RequestID > n {
			t.Fatalf("RequestID %d out of range", c.RequestID)
		}
		if seen[c.RequestID] {
			t.Fatalf("duplicate RequestID %d", c.RequestID)
		}
		seen[c.RequestID] = true
	}
}

func TestGetByID(t *testing.T) {
	s := NewStore()
	uid, _ := s.CreateCollector()
	_, _ = s.Append(uid, CaptureInput{Method: "GET", Body: "first"})
	_, _ = s.Append(uid, CaptureInput{Method: "POST", Body: "second"})

	c, err := s.GetByID(uid, 2)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Body != "second" || c.Method != "POST" {
		t.Fatalf("wrong capture: %+v", c)
	}

	if _, err := s.GetByID(uid, 99); !errors.Is(err, ErrCaptureNotFound) {
		t.Fatalf("err = %v, want ErrCaptureNotFound", err)
	}
	if _, err := s.GetByID("DEADBEEF", 1); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
}

func TestGetLast(t *testing.T) {
	s := NewStore()
	uid, _ := s.CreateCollector()

	if _, err := s.GetLast(uid); !errors.Is(err, ErrEmptyCollector) {
		t.Fatalf("err = %v, want ErrEmptyCollector", err)
	}

	_, _ = s.Append(uid, CaptureInput{Body: "a"})
	_, _ = s.Append(uid, CaptureInput{Body: "b"})

	c, err := s.GetLast(uid)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if c.Body != "b" || c.RequestID != 2 {
		t.Fatalf("wrong last capture: %+v", c)
	}

	if _, err := s.GetLast("DEADBEEF"); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
}

func TestDeleteCapture(t *testing.T) {
	s := NewStore()
	uid, _ := s.CreateCollector()
	_, _ = s.Append(uid, CaptureInput{})

	ok, err := s.DeleteCapture(uid, 1)
	if err != nil || !ok {
		t.Fatalf("DeleteCapture = %v, %v, want true, nil", ok, err)
	}

	// Second delete of the same id reports no removal.
	ok, err = s.DeleteCapture(uid, 1)
	if err != nil || ok {
		t.Fatalf("repeat DeleteCapture = %v, %v, want false, nil", ok, err)
	}

	if _, err := s.DeleteCapture("DEADBEEF", 1); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
}

func TestDeleteCollector_TokenGate(t *testing.T) {
	s := NewStore()
	uid, tok := s.CreateCollector()
	_, _ = s.Append(uid, CaptureInput{})

	// Wrong token: forbidden, collector untouched.
	ok, err := s.DeleteCollector(uid, "not-the-token")
	if err != nil {
		t.Fatalf("DeleteCollector: %v", err)
	}
	if ok {
		t.Fatal("wrong token was accepted")
	}
	if !s.Exists(uid) {
		t.Fatal("collector removed despite bad token")
	}

	// Empty token: still forbidden.
	if ok, _ := s.DeleteCollector(uid, ""); ok {
		t.Fatal("empty token was accepted")
	}

	// Correct token: removed.
	ok, err = s.DeleteCollector(uid, tok)
	if err != nil || !ok {
		t.Fatalf("DeleteCollector with valid token = %v, %v", ok, err)
	}
	if s.Exists(uid) {
		t.Fatal("collector still exists after deletion")
	}
	if _, err := s.List(uid); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("List after delete: err = %v, want ErrCollectorNotFound", err)
	}

	// Unknown uid is NotFound, not forbidden.
	if _, err := s.DeleteCollector(uid, tok); !errors.Is(err, ErrCollectorNotFound) {
		t.Fatalf("err = %v, want ErrCollectorNotFound", err)
	}
}

func TestExistsMany(t *testing.T) {
	s := NewStore()
	uid1, _ := s.CreateCollector()
	uid2, _ := s.CreateCollector()

	valid, err := s.ExistsMany([]string{uid2, "DEADBEEF", uid1})
	if err != nil {
		t.Fatalf("ExistsMany: %v", err)
	}
	if len(valid) != 2 || valid[0] != uid2 || valid[1] != uid1 {
		t.Fatalf("valid = %v, want [%s %s]", valid, uid2, uid1)
	}

	// Over the batch cap: ValidationError even if every uid is valid.
	batch := make([]string, MaxExistsBatch+1)
	for i := range batch {
		batch[i] = uid1
	}
	if _, err := s.ExistsMany(batch); !IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// At the cap: fine.
	if _, err := s.ExistsMany(batch[:MaxExistsBatch]); err != nil {
		t.Fatalf("ExistsMany at cap: %v", err)
	}
}

func TestNotifications_OrderAndKinds(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(WithNotifier(n))
	uid, tok := s.CreateCollector()

	_, _ = s.Append(uid, CaptureInput{})
	_, _ = s.Append(uid, CaptureInput{})
	_, _ = s.DeleteCapture(uid, 1)
	_, _ = s.DeleteCollector(uid, tok)

	want := []string{
		"created:" + uid + ":1",
		"created:" + uid + ":2",
		"deleted:" + uid + ":1",
		"collector-deleted:" + uid,
	}
	got := n.all()
	if len(got) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifications_NoEventOnFailure(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(WithNotifier(n))
	uid, _ := s.CreateCollector()

	_, _ = s.Append("DEADBEEF", CaptureInput{})  // unknown uid
	_, _ = s.DeleteCapture(uid, 7)               // nothing to remove
	_, _ = s.DeleteCollector(uid, "wrong-token") // forbidden

	if evs := n.all(); len(evs) != 0 {
		t.Fatalf("unexpected events published: %v", evs)
	}
}

func TestStoreStats(t *testing.T) {
	s := NewStore()
	uid1, _ := s.CreateCollector()
	uid2, _ := s.CreateCollector()
	_, _ = s.Append(uid1, CaptureInput{})
	_, _ = s.Append(uid1, CaptureInput{})
	_, _ = s.Append(uid2, CaptureInput{})

	st := s.StoreStats()
	if st.Collectors != 2 || st.Captures != 3 {
		t.Fatalf("stats = %+v, want {2 3}", st)
	}
}
