package chunkstore_test

import (
	"bytes"
	"testing"

	"github.com/adamjohannes/ouroboros-fs/chunkstore"
)

func TestPutGetRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello ring")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00, 0x01}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := chunkstore.New()
			if err := s.Put(c.name, c.data); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, ok, err := s.Get(c.name)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !ok {
				t.Fatalf("Get: expected ok=true")
			}
			if !bytes.Equal(got, c.data) {
				t.Fatalf("round trip mismatch: got %v want %v", got, c.data)
			}
		})
	}
}

func TestGetMissingKey(t *testing.T) {
	s := chunkstore.New()
	_, ok, err := s.Get("never-written")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a never-written key")
	}
}

func TestOverwrite(t *testing.T) {
	s := chunkstore.New()
	if err := s.Put("k", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get after overwrite: ok=%v err=%v", ok, err)
	}
	if string(got) != "second" {
		t.Fatalf("got %q, want %q", got, "second")
	}
}
