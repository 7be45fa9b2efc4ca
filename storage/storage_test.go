package storage

import (
	"bytes"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/pconrad/go-mtpd/mtp"
)

// fakeBackend is an in-memory Backend used to exercise Storage without
// touching the real filesystem, in the style of the teacher's own
// preference for small hand-written fakes over a mocking framework.
type fakeBackend struct {
	dirs  map[string]bool
	files map[string][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		dirs:  map[string]bool{"/": true},
		files: map[string][]byte{},
	}
}

func (b *fakeBackend) List(path string) ([]Entry, error) {
	seen := map[string]Entry{}
	for d := range b.dirs {
		if d == path || d == "/" {
			continue
		}
		if parent, name := splitParent(d); parent == path {
			seen[name] = Entry{Name: name, IsDir: true}
		}
	}
	for f, data := range b.files {
		if parent, name := splitParent(f); parent == path {
			seen[name] = Entry{Name: name, IsDir: false, Size: int64(len(data))}
		}
	}
	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func splitParent(path string) (parent, name string) {
	trimmed := path
	if len(trimmed) > 1 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	idx := -1
	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", trimmed
	}
	if idx == 0 {
		return "/", trimmed[1:]
	}
	return trimmed[:idx+1], trimmed[idx+1:]
}

func (b *fakeBackend) Stat(path string) (Entry, error) { return Entry{}, nil }

func (b *fakeBackend) CreateFile(path string, size int64) error {
	b.files[path] = make([]byte, size)
	return nil
}

func (b *fakeBackend) CreateDirectory(path string) error {
	b.dirs[path+"/"] = true
	return nil
}

type nopCloserReader struct{ io.Reader }

func (nopCloserReader) Close() error { return nil }

type bufWriteCloser struct {
	path *string
	b    *fakeBackend
	buf  bytes.Buffer
}

func (w *bufWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *bufWriteCloser) Close() error {
	w.b.files[*w.path] = w.buf.Bytes()
	return nil
}

func (b *fakeBackend) OpenReader(path string) (io.ReadCloser, error) {
	return nopCloserReader{bytes.NewReader(b.files[path])}, nil
}

func (b *fakeBackend) OpenWriter(path string) (io.WriteCloser, error) {
	p := path
	return &bufWriteCloser{path: &p, b: b}, nil
}

func (b *fakeBackend) RemoveFile(path string) error {
	delete(b.files, path)
	return nil
}

func (b *fakeBackend) RemoveDirectory(path string) error {
	delete(b.dirs, path+"/")
	return nil
}

func (b *fakeBackend) MoveFile(oldPath, newPath string) error {
	b.files[newPath] = b.files[oldPath]
	delete(b.files, oldPath)
	return nil
}

func (b *fakeBackend) MoveDirectory(oldPath, newPath string) error {
	b.dirs[newPath+"/"] = true
	delete(b.dirs, oldPath+"/")
	return nil
}

func (b *fakeBackend) CopyFile(oldPath, newPath string) error {
	data := make([]byte, len(b.files[oldPath]))
	copy(data, b.files[oldPath])
	b.files[newPath] = data
	return nil
}

func (b *fakeBackend) Timestamps(path string) (time.Time, time.Time, error) {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return t, t, nil
}

func (b *fakeBackend) TotalSpace() (uint64, error) { return 1 << 30, nil }
func (b *fakeBackend) FreeSpace() (uint64, error)  { return 1 << 20, nil }

func TestGetObjectHandlesListsChildren(t *testing.T) {
	backend := newFakeBackend()
	backend.files["/song.mp3"] = []byte("data")
	backend.dirs["/DCIM/"] = true

	s := New(0x00010001, "sd", "SD", false, backend)
	handles, err := s.GetObjectHandles(s.Root())
	if err != nil {
		t.Fatalf("GetObjectHandles: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 children, got %d", len(handles))
	}
}

func TestSendObjectInfoThenSendObjectRoundtrip(t *testing.T) {
	backend := newFakeBackend()
	s := New(1, "sd", "SD", false, backend)

	info := mtp.ObjectInfo{
		ObjectFormat:   uint16(mtp.OFC_Undefined),
		Filename:       "note.txt",
		CompressedSize: 5,
	}
	obj, err := s.SendObjectInfo(s.Root(), info)
	if err != nil {
		t.Fatalf("SendObjectInfo: %v", err)
	}
	if obj.Path != "/note.txt" {
		t.Fatalf("got path %q want /note.txt", obj.Path)
	}

	if err := s.SendObject(bytes.NewReader([]byte("hello")), obj, 5); err != nil {
		t.Fatalf("SendObject: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.GetObject(&buf, obj); err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("got %q want hello", buf.String())
	}
}

func TestDeleteObjectErasesBothIndexes(t *testing.T) {
	backend := newFakeBackend()
	backend.files["/a.txt"] = []byte("x")
	s := New(1, "sd", "SD", false, backend)

	handles, err := s.GetObjectHandles(s.Root())
	if err != nil || len(handles) != 1 {
		t.Fatalf("setup: GetObjectHandles: %v %v", handles, err)
	}
	obj, _ := s.FindHandle(handles[0])

	if err := s.DeleteObject(obj); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if _, ok := s.FindHandle(obj.Handle); ok {
		t.Fatal("expected handle to be gone from the object arena")
	}
	if _, ok := s.knownPaths[obj.Path]; ok {
		t.Fatal("expected path to be gone from known_paths")
	}
}

func TestSetObjectPropValueRenamesAndReindexes(t *testing.T) {
	backend := newFakeBackend()
	backend.files["/old.txt"] = []byte("x")
	s := New(1, "sd", "SD", false, backend)

	handles, _ := s.GetObjectHandles(s.Root())
	obj, _ := s.FindHandle(handles[0])

	if err := s.SetObjectPropValue(obj, mtp.OPC_ObjectFileName, "new.txt"); err != nil {
		t.Fatalf("SetObjectPropValue: %v", err)
	}
	if obj.Path != "/new.txt" {
		t.Fatalf("got path %q want /new.txt", obj.Path)
	}
	if _, ok := s.knownPaths["/old.txt"]; ok {
		t.Fatal("expected old path to be removed from known_paths")
	}
	if h, ok := s.knownPaths["/new.txt"]; !ok || h != obj.Handle {
		t.Fatal("expected new path to be indexed to the same handle")
	}
}

func TestGetObjectPropValueObjectSizeRejectsDirectories(t *testing.T) {
	backend := newFakeBackend()
	backend.dirs["/DCIM/"] = true
	s := New(1, "sd", "SD", false, backend)

	handles, _ := s.GetObjectHandles(s.Root())
	dir, _ := s.FindHandle(handles[0])

	if _, err := s.GetObjectPropValue(dir, mtp.OPC_ObjectSize); err == nil {
		t.Fatal("expected Invalid_ObjectPropCode for a directory's Object_Size")
	}
}

func TestCopyObjectDirectoryIsNonRecursive(t *testing.T) {
	backend := newFakeBackend()
	backend.dirs["/src/"] = true
	backend.files["/src/inner.txt"] = []byte("x")
	backend.dirs["/dst/"] = true
	s := New(1, "sd", "SD", false, backend)

	handles, _ := s.GetObjectHandles(s.Root())
	var src, dst *mtp.Object
	for _, h := range handles {
		o, _ := s.FindHandle(h)
		if o.Name == "src" {
			src = o
		}
		if o.Name == "dst" {
			dst = o
		}
	}
	if src == nil || dst == nil {
		t.Fatal("setup: expected both src and dst directories")
	}

	copied, err := s.CopyObject(src, dst)
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if _, err := backend.List(copied.Path); err != nil {
		t.Fatalf("expected copied directory to exist: %v", err)
	}
	if _, ok := backend.files[copied.Path+"inner.txt"]; ok {
		t.Fatal("expected non-recursive copy to not carry inner.txt along")
	}
}
