package storage

import (
	"sort"

	"github.com/pconrad/go-mtpd/mtp"
)

// Manager holds every Storage a session can see and resolves handles
// across all of them, grounded on
// original_source/src/mtp_storage.hpp/.cpp's StorageManager.
type Manager struct {
	storages map[uint32]*Storage
}

func NewManager() *Manager {
	return &Manager{storages: make(map[uint32]*Storage)}
}

// Add registers a storage. Callers add storages once at startup, before
// any session opens; the engine never mutates the set concurrently.
func (m *Manager) Add(s *Storage) {
	m.storages[s.ID] = s
}

// FindStorage looks up a storage by its MTP StorageID.
func (m *Manager) FindStorage(id uint32) (*Storage, bool) {
	s, ok := m.storages[id]
	return s, ok
}

// FindHandle searches every storage for handle, returning the owning
// storage and object.
func (m *Manager) FindHandle(handle mtp.Handle) (*Storage, *mtp.Object, bool) {
	for _, s := range m.storages {
		if obj, ok := s.FindHandle(handle); ok {
			return s, obj, true
		}
	}
	return nil, nil, false
}

// StorageIDs returns every registered storage ID, in a stable order.
func (m *Manager) StorageIDs() []uint32 {
	ids := make([]uint32, 0, len(m.storages))
	for id := range m.storages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
