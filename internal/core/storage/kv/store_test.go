package kv

import (
	"bytes"
	"testing"

	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine/badger"
)

// testStore 创建测试用 KVStore
func testStore(t *testing.T, prefix string) (*Store, engine.InternalEngine) {
	t.Helper()

	eng, err := badger.New(engine.InMemoryConfig())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Errorf("failed to close engine: %v", err)
		}
	})
	return New(eng, []byte(prefix)), eng
}

func TestStore_PutGet(t *testing.T) {
	s, eng := testStore(t, "test/")

	if err := s.Put([]byte("key1"), []byte("value1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get([]byte("key1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("value1")) {
		t.Errorf("Get returned %q, want %q", got, "value1")
	}

	// 底层键带前缀
	raw, err := eng.Get([]byte("test/key1"))
	if err != nil || string(raw) != "value1" {
		t.Errorf("raw Get = %q, %v", raw, err)
	}
}

func TestStore_PrefixIsolation(t *testing.T) {
	s, eng := testStore(t, "a/")
	other := New(eng, []byte("b/"))

	if err := s.PutString([]byte("k"), "from-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Get([]byte("k")); !engine.IsNotFound(err) {
		t.Errorf("other store saw key: %v", err)
	}
}

func TestStore_JSON(t *testing.T) {
	s, _ := testStore(t, "j/")

	type record struct {
		Channels []string `json:"channels"`
	}
	if err := s.PutJSON([]byte("r"), record{Channels: []string{"x", "y"}}); err != nil {
		t.Fatal(err)
	}
	var got record
	if err := s.GetJSON([]byte("r"), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Channels) != 2 || got.Channels[1] != "y" {
		t.Errorf("GetJSON = %+v", got)
	}

	if err := s.Put([]byte("bad"), []byte("{")); err != nil {
		t.Fatal(err)
	}
	if err := s.GetJSON([]byte("bad"), &got); err != engine.ErrCorrupted {
		t.Errorf("GetJSON on garbage = %v, want ErrCorrupted", err)
	}
}

func TestStore_BatchAndClear(t *testing.T) {
	s, eng := testStore(t, "id/")
	if err := eng.Put([]byte("keep"), []byte("1")); err != nil {
		t.Fatal(err)
	}

	b := s.NewBatch()
	b.PutString([]byte("app"), "demo")
	b.PutString([]byte("user"), "alice")
	if err := b.PutJSON([]byte("channels"), []string{"default"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(); err != nil {
		t.Fatalf("batch Write failed: %v", err)
	}

	keys, err := s.Keys(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("Keys = %q, want 3 keys", keys)
	}
	// 键已去除前缀且按序
	if string(keys[0]) != "app" {
		t.Errorf("keys[0] = %q, want app", keys[0])
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	keys, _ = s.Keys(nil)
	if len(keys) != 0 {
		t.Errorf("Keys after Clear = %q", keys)
	}
	// 前缀外的键不受影响
	if ok, _ := eng.Has([]byte("keep")); !ok {
		t.Error("Clear removed key outside prefix")
	}
}

func TestStore_SubStore(t *testing.T) {
	s, eng := testStore(t, "p/")
	sub := s.SubStore([]byte("q/"))
	if err := sub.PutString([]byte("k"), "v"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := eng.Has([]byte("p/q/k")); !ok {
		t.Error("substore key not nested")
	}
	if string(sub.Prefix()) != "p/q/" {
		t.Errorf("Prefix = %q", sub.Prefix())
	}
}
