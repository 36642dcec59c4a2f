package ring

import "testing"

func TestChainWalksFullCycle(t *testing.T) {
	topo := map[string]string{
		"a:1": "b:2",
		"b:2": "c:3",
		"c:3": "a:1",
	}
	chain, err := Chain(topo, "a:1")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	want := []string{"a:1", "b:2", "c:3"}
	if len(chain) != len(want) {
		t.Fatalf("Chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("Chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestChainSingleNodeRing(t *testing.T) {
	topo := map[string]string{"a:1": "a:1"}
	chain, err := Chain(topo, "a:1")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 1 || chain[0] != "a:1" {
		t.Fatalf("Chain = %v, want [a:1]", chain)
	}
}

func TestChainBrokenTopologyErrors(t *testing.T) {
	topo := map[string]string{"a:1": "b:2"} // b:2 has no recorded successor
	if _, err := Chain(topo, "a:1"); err == nil {
		t.Fatalf("expected error for a chain that never returns to origin")
	}
}

func TestChunkBoundsEvenSplit(t *testing.T) {
	// size=9, n=3 -> 3,3,3
	for idx, want := range []int64{3, 3, 3} {
		got := ChunkBounds(9, 3, idx)
		if got != want {
			t.Errorf("ChunkBounds(9,3,%d) = %d, want %d", idx, got, want)
		}
	}
}

func TestChunkBoundsRemainderOnLastChunk(t *testing.T) {
	// size=10, n=3 -> ceil(10/3)=4, so 4,4,2
	want := []int64{4, 4, 2}
	for idx, w := range want {
		got := ChunkBounds(10, 3, idx)
		if got != w {
			t.Errorf("ChunkBounds(10,3,%d) = %d, want %d", idx, got, w)
		}
	}
}

func TestChunkBoundsSingleNode(t *testing.T) {
	if got := ChunkBounds(42, 1, 0); got != 42 {
		t.Fatalf("ChunkBounds(42,1,0) = %d, want 42", got)
	}
}
