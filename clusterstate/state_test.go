package clusterstate_test

import (
	"sync"
	"testing"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
)

func TestNewSelfIsAlive(t *testing.T) {
	st := clusterstate.New("127.0.0.1:7001")
	status, ok := st.GetStatus("127.0.0.1:7001")
	if !ok || status != clusterstate.Alive {
		t.Fatalf("self should start Alive, got %v ok=%v", status, ok)
	}
}

func TestMergeNetmapForcesSelfAlive(t *testing.T) {
	st := clusterstate.New("127.0.0.1:7001")
	st.MergeNetmap(map[string]clusterstate.Status{
		"127.0.0.1:7001": clusterstate.Dead,
		"127.0.0.1:7002": clusterstate.Alive,
	})
	status, ok := st.GetStatus("127.0.0.1:7001")
	if !ok || status != clusterstate.Alive {
		t.Fatalf("MergeNetmap must keep self Alive regardless of input, got %v", status)
	}
	if st.AliveCount() != 2 {
		t.Fatalf("AliveCount = %d, want 2", st.AliveCount())
	}
}

func TestSuccessorRoundTrip(t *testing.T) {
	st := clusterstate.New("a:1")
	if _, ok := st.Successor(); ok {
		t.Fatalf("fresh state should have no successor")
	}
	st.SetSelfSuccessor("b:2")
	next, ok := st.Successor()
	if !ok || next != "b:2" {
		t.Fatalf("Successor() = %q, %v; want b:2, true", next, ok)
	}
}

func TestUpsertFileTagsIsPerKey(t *testing.T) {
	st := clusterstate.New("a:1")
	st.SetFileTag("x.txt", 10, "a:1")
	st.UpsertFileTags(map[string]clusterstate.FileTag{
		"y.txt": {Size: 20, Start: "b:2"},
	})
	if tags := st.ListTags(); len(tags) != 2 {
		t.Fatalf("expected upsert to add without dropping existing, got %v", tags)
	}
	tag, ok := st.GetFileTag("x.txt")
	if !ok || tag.Size != 10 {
		t.Fatalf("existing tag should survive an unrelated upsert, got %v ok=%v", tag, ok)
	}
}

// TestConcurrentTableAccess exercises the spec's "three independently
// locked tables" design: concurrent writers to different tables must not
// deadlock or race (run with -race).
func TestConcurrentTableAccess(t *testing.T) {
	st := clusterstate.New("a:1")
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st.SetStatus("b:2", clusterstate.Alive)
			_ = st.Netmap()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st.SetSelfSuccessor("b:2")
			_ = st.Topology()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st.SetFileTag("f.txt", int64(i), "a:1")
			_ = st.ListTags()
		}
	}()
	wg.Wait()
}
