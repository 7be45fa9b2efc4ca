package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/pconrad/go-mtpd/mtp"
)

// Storage is one MTP storage volume: a Backend plus the lazily-populated
// object arena over it. Grounded on original_source/src/mtp_storage.hpp/
// .cpp's Storage type — known_paths/objects survive as plain Go maps
// rather than std::unordered_map, since spec.md §5 keeps the whole engine
// single-threaded and no other goroutine ever touches a Storage.
type Storage struct {
	ID          uint32
	Description string
	VolumeLabel string
	ReadOnly    bool

	backend Backend
	handles *mtp.HandleAllocator

	knownPaths map[string]mtp.Handle
	objects    map[mtp.Handle]*mtp.Object
}

// processHandles is the one allocator every Storage draws from, so a
// handle names at most one object across all storages and
// Manager.FindHandle can resolve it to its owning storage.
var processHandles = mtp.NewHandleAllocator()

// New registers a storage's root association and returns it ready to
// serve GetObjectHandles/GetObjectInfo etc. against backend.
func New(id uint32, description, volumeLabel string, readOnly bool, backend Backend) *Storage {
	s := &Storage{
		ID:          id,
		Description: description,
		VolumeLabel: volumeLabel,
		ReadOnly:    readOnly,
		backend:     backend,
		handles:     processHandles,
		knownPaths:  make(map[string]mtp.Handle),
		objects:     make(map[mtp.Handle]*mtp.Object),
	}
	root := &mtp.Object{
		Handle:       mtp.RootHandle,
		ParentHandle: mtp.RootHandle,
		Path:         "/",
		Name:         "",
		Format:       mtp.OFC_Association,
	}
	s.knownPaths["/"] = mtp.RootHandle
	s.objects[mtp.RootHandle] = root
	return s
}

// Root returns the storage's root association object.
func (s *Storage) Root() *mtp.Object {
	return s.objects[mtp.RootHandle]
}

// FindHandle returns the object registered under handle, if any.
func (s *Storage) FindHandle(handle mtp.Handle) (*mtp.Object, bool) {
	o, ok := s.objects[handle]
	return o, ok
}

// GetStorageInfo reports current capacity, re-querying the backend so the
// numbers reflect the volume's live free space.
func (s *Storage) GetStorageInfo() (mtp.StorageInfo, error) {
	total, err := s.backend.TotalSpace()
	if err != nil {
		return mtp.StorageInfo{}, err
	}
	free, err := s.backend.FreeSpace()
	if err != nil {
		return mtp.StorageInfo{}, err
	}
	access := uint16(mtp.AC_ReadWrite)
	if s.ReadOnly {
		access = uint16(mtp.AC_ReadOnlyNoDeletion)
	}
	return mtp.StorageInfo{
		StorageType:        uint16(mtp.ST_FixedRAM),
		FilesystemType:     uint16(mtp.FST_GenericHierarchical),
		AccessCapability:   access,
		MaxCapability:      total,
		FreeSpaceInBytes:   free,
		FreeSpaceInImages:  0xFFFFFFFF,
		StorageDescription: s.Description,
		VolumeLabel:        s.VolumeLabel,
	}, nil
}

// cacheDirectory lists object's children, registering any not already
// known, and returns the handles at exactly depth levels below object
// (depth 0 returns object's own handle). Grounded on
// original_source/src/mtp_storage.cpp's Storage::cache_directory: children
// are materialized on demand rather than up front, so a storage with
// content the host never asks about never pays the stat cost for it.
func (s *Storage) cacheDirectory(object *mtp.Object, depth, curDepth uint32) ([]mtp.Handle, error) {
	if depth == 0 {
		return []mtp.Handle{object.Handle}, nil
	}

	entries, err := s.backend.List(object.Path)
	if err != nil {
		return nil, err
	}

	handles := make([]mtp.Handle, 0, len(entries))
	for _, entry := range entries {
		path := object.Path + entry.Name
		format := mtp.OFC_Undefined
		if entry.IsDir {
			path += "/"
			format = mtp.OFC_Association
		}

		handle, known := s.knownPaths[path]
		if !known {
			handle = s.handles.Next()
			s.knownPaths[path] = handle

			s.objects[handle] = &mtp.Object{
				Handle:       handle,
				ParentHandle: object.Handle,
				Path:         path,
				Name:         entry.Name,
				Format:       format,
				Size:         entry.Size,
			}
		}

		if curDepth == depth {
			handles = append(handles, handle)
		}

		if curDepth < depth {
			if child := s.objects[handle]; child.IsAssociation() {
				sub, err := s.cacheDirectory(child, depth, curDepth+1)
				if err != nil {
					return nil, err
				}
				handles = append(handles, sub...)
			}
		}
	}

	return handles, nil
}

// GetObjectHandles lists object's immediate children, an alias for
// cacheDirectory at depth 1.
func (s *Storage) GetObjectHandles(object *mtp.Object) ([]mtp.Handle, error) {
	return s.cacheDirectory(object, 1, 1)
}

// GetObjectInfo builds the ObjectInfo dataset for object.
func (s *Storage) GetObjectInfo(object *mtp.Object) (mtp.ObjectInfo, error) {
	info := mtp.ObjectInfo{
		StorageID:       s.ID,
		ObjectFormat:    uint16(object.Format),
		CompressedSize:  uint32(object.Size),
		ParentObject:    uint32(object.ParentHandle),
		AssociationType: mtp.AT_GenericFolder,
		Filename:        object.Name,
	}
	if object.Handle == mtp.RootHandle {
		info.ParentObject = 0
	}
	if !object.IsAssociation() {
		created, modified, err := s.backend.Timestamps(object.Path)
		if err != nil {
			return mtp.ObjectInfo{}, err
		}
		info.CaptureDate = created
		info.ModificationDate = modified
	}
	return info, nil
}

// GetObject streams object's full contents to w.
func (s *Storage) GetObject(w io.Writer, object *mtp.Object) (int64, error) {
	r, err := s.backend.OpenReader(object.Path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return mtp.StreamToHost(w, r, object.Size)
}

// GetPartialObject streams up to size bytes of object starting at offset,
// returning the number of bytes actually served (which may be less than
// size at end of file, per spec.md §9's resolution of this Open Question).
func (s *Storage) GetPartialObject(w io.Writer, object *mtp.Object, offset, size uint64) (int64, error) {
	r, err := s.backend.OpenReader(object.Path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if offset > 0 {
		seeker, ok := r.(io.Seeker)
		if !ok {
			return 0, fmt.Errorf("storage: backend reader does not support seeking")
		}
		if _, err := seeker.Seek(int64(offset), io.SeekStart); err != nil {
			return 0, err
		}
	}

	remaining := object.Size - int64(offset)
	if remaining < 0 {
		remaining = 0
	}
	want := int64(size)
	if want > remaining {
		want = remaining
	}
	return mtp.StreamToHost(w, r, want)
}

// DeleteObject removes object from the backend and, resolving spec.md
// §9's DeleteObject Open Question, erases it from both known_paths and
// the object arena so a stale handle can never be looked up again (the
// original C++ leaves both maps holding the deleted entry).
func (s *Storage) DeleteObject(object *mtp.Object) error {
	var err error
	if object.IsAssociation() {
		err = s.backend.RemoveDirectory(object.Path)
	} else {
		err = s.backend.RemoveFile(object.Path)
	}
	if err != nil {
		return err
	}
	delete(s.knownPaths, object.Path)
	delete(s.objects, object.Handle)
	return nil
}

// SendObjectInfo creates a new object under parent per info, creating the
// backing file (pre-sized) or directory, and returns the new object ready
// for a following SendObject to fill in file contents.
func (s *Storage) SendObjectInfo(parent *mtp.Object, info mtp.ObjectInfo) (*mtp.Object, error) {
	path := parent.Path + info.Filename
	format := mtp.ObjectFormatCode(info.ObjectFormat)

	if format == mtp.OFC_Association {
		if err := s.backend.CreateDirectory(path); err != nil {
			return nil, err
		}
	} else {
		if err := s.backend.CreateFile(path, int64(info.CompressedSize)); err != nil {
			return nil, err
		}
	}

	handle := s.handles.Next()
	fullPath := path
	if format == mtp.OFC_Association {
		fullPath += "/"
	}

	obj := &mtp.Object{
		Handle:       handle,
		ParentHandle: parent.Handle,
		Path:         fullPath,
		Name:         info.Filename,
		Format:       format,
		Size:         int64(info.CompressedSize),
	}
	s.knownPaths[fullPath] = handle
	s.objects[handle] = obj
	return obj, nil
}

// SendObject writes size bytes read from r into object's backing file.
// The caller (engine) is responsible for rejecting SendObject when no
// object created by a preceding SendObjectInfo is pending, per spec.md
// §9's resolution of that Open Question.
func (s *Storage) SendObject(r io.Reader, object *mtp.Object, size int64) error {
	w, err := s.backend.OpenWriter(object.Path)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := mtp.StreamFromHost(w, r, size); err != nil {
		return err
	}
	object.Size = size
	return nil
}

// MoveObject relocates object to be a child of newParent, keeping its
// handle and reindexing known_paths under the new path.
func (s *Storage) MoveObject(object *mtp.Object, newParent *mtp.Object) error {
	oldPath := object.Path
	newPath := newParent.Path + object.Name
	if object.IsAssociation() {
		newPath += "/"
	}

	var err error
	if object.IsAssociation() {
		err = s.backend.MoveDirectory(strings.TrimSuffix(oldPath, "/"), strings.TrimSuffix(newPath, "/"))
	} else {
		err = s.backend.MoveFile(oldPath, newPath)
	}
	if err != nil {
		return err
	}

	delete(s.knownPaths, oldPath)
	s.knownPaths[newPath] = object.Handle
	object.Path = newPath
	object.ParentHandle = newParent.Handle
	return nil
}

// CopyObject duplicates object under newParent with a freshly allocated
// handle. Directories are copied non-recursively (only the empty target
// directory is created), matching original_source/src/mtp_storage.cpp's
// copy_object; a genuinely recursive copy is a larger change this
// responder does not make on its own.
func (s *Storage) CopyObject(object *mtp.Object, newParent *mtp.Object) (*mtp.Object, error) {
	newPath := newParent.Path + object.Name
	if object.IsAssociation() {
		newPath += "/"
	}

	if object.IsAssociation() {
		if err := s.backend.CreateDirectory(strings.TrimSuffix(newPath, "/")); err != nil {
			return nil, err
		}
	} else {
		if err := s.backend.CreateFile(newPath, object.Size); err != nil {
			return nil, err
		}
		if err := s.backend.CopyFile(object.Path, newPath); err != nil {
			return nil, err
		}
	}

	handle := s.handles.Next()
	newObj := &mtp.Object{
		Handle:       handle,
		ParentHandle: newParent.Handle,
		Path:         newPath,
		Name:         object.Name,
		Format:       object.Format,
		Size:         object.Size,
	}
	s.knownPaths[newPath] = handle
	s.objects[handle] = newObj
	return newObj, nil
}

// GetObjectPropValue returns the value of one MTP object property for
// object, matching original_source/src/mtp_storage.cpp's
// get_object_prop_value switch.
func (s *Storage) GetObjectPropValue(object *mtp.Object, property mtp.ObjectPropertyCode) (interface{}, error) {
	switch property {
	case mtp.OPC_StorageID:
		return s.ID, nil
	case mtp.OPC_ObjectFormat:
		return uint16(object.Format), nil
	case mtp.OPC_ObjectSize:
		if object.IsAssociation() {
			return nil, mtp.RCError(mtp.RC_InvalidObjectPropCode)
		}
		return uint64(object.Size), nil
	case mtp.OPC_ObjectFileName:
		return object.Name, nil
	case mtp.OPC_DateCreated:
		if object.IsAssociation() {
			return nil, mtp.RCError(mtp.RC_InvalidObjectPropCode)
		}
		created, _, err := s.backend.Timestamps(object.Path)
		return created, err
	case mtp.OPC_DateModified:
		if object.IsAssociation() {
			return nil, mtp.RCError(mtp.RC_InvalidObjectPropCode)
		}
		_, modified, err := s.backend.Timestamps(object.Path)
		return modified, err
	case mtp.OPC_ParentObject:
		if object.Handle == mtp.RootHandle {
			return uint32(0), nil
		}
		return uint32(object.ParentHandle), nil
	default:
		return nil, mtp.RCError(mtp.RC_InvalidObjectPropCode)
	}
}

// SetObjectPropValue applies a settable MTP object property to object.
// Object_File_Name is the only settable property this responder exposes
// (see mtp/properties.go); setting it renames the backing file/directory
// and, resolving spec.md §9's SetObjectPropValue Open Question, reindexes
// known_paths so subsequent lookups see the new path.
func (s *Storage) SetObjectPropValue(object *mtp.Object, property mtp.ObjectPropertyCode, value interface{}) error {
	if property != mtp.OPC_ObjectFileName {
		return mtp.RCError(mtp.RC_InvalidObjectPropCode)
	}
	name, ok := value.(string)
	if !ok {
		return mtp.RCError(mtp.RC_InvalidParameter)
	}

	parent, ok := s.objects[object.ParentHandle]
	if !ok {
		return mtp.RCError(mtp.RC_InvalidParentObject)
	}

	oldPath := object.Path
	newPath := parent.Path + name
	if object.IsAssociation() {
		newPath += "/"
	}

	var err error
	if object.IsAssociation() {
		err = s.backend.MoveDirectory(strings.TrimSuffix(oldPath, "/"), strings.TrimSuffix(newPath, "/"))
	} else {
		err = s.backend.MoveFile(oldPath, newPath)
	}
	if err != nil {
		return err
	}

	delete(s.knownPaths, oldPath)
	s.knownPaths[newPath] = object.Handle
	object.Path = newPath
	object.Name = name
	return nil
}
