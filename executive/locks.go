package executive

import (
	"github.com/bcos-x/executor-core/state"
	"github.com/bcos-x/executor-core/vm"
)

// noopLocker is the default KeyLockAcquirer, installed for both the
// sequential and the DAG path: every acquisition succeeds immediately and
// nothing needs to be released.
type noopLocker struct{}

func (noopLocker) AcquireKey(table, key string) error { return nil }
func (noopLocker) ReleaseAll()                         {}

var defaultLocker KeyLockAcquirer = noopLocker{}

// lockingStorage decorates a vm.Storage so every Get/Set first asks the
// installed KeyLockAcquirer to grant the (table, key) pair, per spec's
// KeyLocks subsystem. With noopLocker this adds nothing; no acquirer in this
// module yields to a scheduler-side lock table.
type lockingStorage struct {
	inner  vm.Storage
	locker KeyLockAcquirer
}

func (s *lockingStorage) GetRow(t, key string) (*state.Entry, error) {
	if err := s.locker.AcquireKey(t, key); err != nil {
		return nil, err
	}
	return s.inner.GetRow(t, key)
}

func (s *lockingStorage) SetRow(t, key string, e *state.Entry) error {
	if err := s.locker.AcquireKey(t, key); err != nil {
		return err
	}
	return s.inner.SetRow(t, key, e)
}

func (s *lockingStorage) OpenTable(name string) (*state.Table, error) {
	return s.inner.OpenTable(name)
}

func (s *lockingStorage) CreateTable(name string, valueFields []string) (*state.Table, error) {
	return s.inner.CreateTable(name, valueFields)
}

func (s *lockingStorage) GetPrimaryKeys(t string, condition func(key string) bool) ([]string, error) {
	return s.inner.GetPrimaryKeys(t, condition)
}

var _ vm.Storage = (*lockingStorage)(nil)
