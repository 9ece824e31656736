package vm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bcos-x/executor-core/state"
)

type memStorage struct {
	backend *memBackend
	overlay *state.Overlay
}

type memBackend struct {
	tables map[string]*state.Table
	rows   map[[2]string]*state.Entry
}

func newMemStorage() *memStorage {
	b := &memBackend{tables: make(map[string]*state.Table), rows: make(map[[2]string]*state.Entry)}
	return &memStorage{backend: b, overlay: state.NewOverlay(1, nil, b)}
}

func (b *memBackend) OpenTable(name string) (*state.Table, error) {
	t, ok := b.tables[name]
	if !ok {
		t = &state.Table{Name: name}
		b.tables[name] = t
	}
	return t, nil
}
func (b *memBackend) GetRow(table, key string) (*state.Entry, error) {
	return b.rows[[2]string{table, key}], nil
}
func (b *memBackend) GetRows(table string, keys []string) ([]*state.Entry, error) {
	out := make([]*state.Entry, len(keys))
	for i, k := range keys {
		out[i] = b.rows[[2]string{table, k}]
	}
	return out, nil
}
func (b *memBackend) SetRow(table, key string, entry *state.Entry) error {
	b.rows[[2]string{table, key}] = entry
	return nil
}
func (b *memBackend) CreateTable(name string, valueFields []string) (*state.Table, error) {
	t := &state.Table{Name: name, ValueFields: valueFields}
	b.tables[name] = t
	return t, nil
}
func (b *memBackend) GetPrimaryKeys(table string, _ func(string) bool) ([]string, error) {
	var out []string
	for k := range b.rows {
		if k[0] == table {
			out = append(out, k[1])
		}
	}
	return out, nil
}
func (b *memBackend) Prepare(uint64, []state.Mutation) error { return nil }
func (b *memBackend) Commit(uint64) error                    { return nil }
func (b *memBackend) Rollback(uint64) error                  { return nil }

func (m *memStorage) GetRow(table, key string) (*state.Entry, error) { return m.overlay.GetRow(table, key) }
func (m *memStorage) SetRow(table, key string, entry *state.Entry) error {
	return m.overlay.SetRow(table, key, entry)
}
func (m *memStorage) OpenTable(name string) (*state.Table, error) { return m.overlay.OpenTable(name) }
func (m *memStorage) CreateTable(name string, fields []string) (*state.Table, error) {
	return m.overlay.CreateTable(name, fields)
}
func (m *memStorage) GetPrimaryKeys(table string, cond func(string) bool) ([]string, error) {
	return m.overlay.GetPrimaryKeys(table, cond)
}

func TestHostGetSetRoundTrip(t *testing.T) {
	storage := newMemStorage()
	addr := common.HexToAddress("0x01")
	h := NewHostContext(storage, nil, nil, NewSubState(), CallParameters{Receiver: addr}, Schedule{}, 0)

	require.NoError(t, h.Set("k1", []byte("v1")))
	got, err := h.Get("k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
}

func TestHostStaticCallRejectsWrite(t *testing.T) {
	storage := newMemStorage()
	addr := common.HexToAddress("0x02")
	h := NewHostContext(storage, nil, nil, NewSubState(), CallParameters{Receiver: addr, StaticCall: true}, Schedule{}, 0)

	err := h.Set("k1", []byte("v1"))
	require.Error(t, err)
}

func TestHostCodeLoadedFromSystemTable(t *testing.T) {
	storage := newMemStorage()
	addr := common.HexToAddress("0x03")
	code := []byte{0x60, 0x00}
	codeHash := common.BytesToHash([]byte("hash"))
	require.NoError(t, SetCode(storage, addr, code, codeHash))

	h := NewHostContext(storage, nil, nil, NewSubState(), CallParameters{Receiver: addr, CodeAddr: addr}, Schedule{}, 0)
	require.Equal(t, code, h.Code())
	require.Equal(t, len(code), h.CodeSizeAt(addr))
}

func TestHostCallWithoutDispatcherErrors(t *testing.T) {
	storage := newMemStorage()
	h := NewHostContext(storage, nil, nil, NewSubState(), CallParameters{}, Schedule{}, 0)
	_, err := h.Call(CallParameters{})
	require.Error(t, err)
}

func TestSubStateMergeAndClear(t *testing.T) {
	parent := NewSubState()
	child := NewSubState()
	child.AddLog(LogEntry{Data: []byte("x")})
	child.Suicide(common.HexToAddress("0x1"), common.HexToAddress("0x2"))

	parent.Merge(child)
	require.Len(t, parent.Logs(), 1)
	require.Len(t, parent.Suicides(), 1)

	parent.Clear()
	require.Empty(t, parent.Logs())
	require.Empty(t, parent.Suicides())
}
