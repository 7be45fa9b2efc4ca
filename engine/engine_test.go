package engine

import (
	"bytes"
	"testing"

	"github.com/pconrad/go-mtpd/log"
	"github.com/pconrad/go-mtpd/mtp"
	"github.com/pconrad/go-mtpd/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Manager) {
	t.Helper()
	backend := storage.NewOSBackend(t.TempDir())
	s := storage.New(0x00010001, "test", "TEST", false, backend)
	manager := storage.NewManager()
	manager.Add(s)

	children := log.PrepareChildren(log.Root, false, false, false, false)
	e := New(Identity{Manufacturer: "go-mtpd", Model: "responder"}, manager, children, nil)
	return e, manager
}

func cmdOf(op mtp.OperationCode, tid uint32, params ...uint32) mtp.CommandPacket {
	var cp mtp.CommandPacket
	cp.Header.Type = uint16(mtp.PT_Command)
	cp.Header.Code = uint16(op)
	cp.Header.TransactionID = tid
	cp.NParam = len(params)
	copy(cp.Params[:], params)
	return cp
}

func TestDispatchGetDeviceInfo(t *testing.T) {
	e, _ := newTestEngine(t)
	cmd := cmdOf(mtp.OC_GetDeviceInfo, 1)

	var w bytes.Buffer
	code, _, err := e.dispatch(nil, cmd, bytes.NewReader(nil), &w)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if code != mtp.RC_OK {
		t.Fatalf("got %s want OK", code)
	}

	n, err := mtp.ReadDataHeader(&w, mtp.OC_GetDeviceInfo, 1)
	if err != nil {
		t.Fatalf("ReadDataHeader: %v", err)
	}
	var info mtp.DeviceInfo
	if err := mtp.Decode(&w, &info); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if info.Manufacturer != "go-mtpd" {
		t.Fatalf("got manufacturer %q want go-mtpd", info.Manufacturer)
	}
	if n == 0 {
		t.Fatal("expected a nonzero payload length")
	}
}

func TestDispatchRejectsBeforeOpenSession(t *testing.T) {
	e, _ := newTestEngine(t)
	cmd := cmdOf(mtp.OC_GetStorageIDs, 1)

	var w bytes.Buffer
	code, _, _ := e.dispatch(nil, cmd, bytes.NewReader(nil), &w)
	if code != mtp.RC_SessionNotOpen {
		t.Fatalf("got %s want Session_Not_Open", code)
	}
}

func TestOpenSessionThenGetStorageIDs(t *testing.T) {
	e, _ := newTestEngine(t)

	openCmd := cmdOf(mtp.OC_OpenSession, 1, 1)
	var discard bytes.Buffer
	if code, _, err := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard); err != nil || code != mtp.RC_OK {
		t.Fatalf("OpenSession: code %s err %v", code, err)
	}

	again, _, _ := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard)
	if again != mtp.RC_SessionAlreadyOpened {
		t.Fatalf("got %s want Session_Already_Opened on reopen", again)
	}

	cmd := cmdOf(mtp.OC_GetStorageIDs, 2)
	var w bytes.Buffer
	code, _, err := e.dispatch(nil, cmd, bytes.NewReader(nil), &w)
	if err != nil || code != mtp.RC_OK {
		t.Fatalf("GetStorageIDs: code %s err %v", code, err)
	}

	if _, err := mtp.ReadDataHeader(&w, mtp.OC_GetStorageIDs, 2); err != nil {
		t.Fatalf("ReadDataHeader: %v", err)
	}
	var ids mtp.Uint32Array
	if err := mtp.Decode(&w, &ids); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ids.Values) != 1 || ids.Values[0] != 0x00010001 {
		t.Fatalf("got %v want [0x00010001]", ids.Values)
	}
}

func TestSendObjectInfoThenSendObject(t *testing.T) {
	e, _ := newTestEngine(t)

	openCmd := cmdOf(mtp.OC_OpenSession, 1, 1)
	var discard bytes.Buffer
	if _, _, err := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	info := mtp.ObjectInfo{
		ObjectFormat:   uint16(mtp.OFC_Undefined),
		Filename:       "note.txt",
		CompressedSize: 5,
	}
	var payload bytes.Buffer
	if err := mtp.Encode(&payload, &info); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var dataIn bytes.Buffer
	if err := mtp.WriteDataHeader(&dataIn, mtp.OC_SendObjectInfo, 2, uint32(payload.Len())); err != nil {
		t.Fatalf("WriteDataHeader: %v", err)
	}
	dataIn.Write(payload.Bytes())

	sendInfoCmd := cmdOf(mtp.OC_SendObjectInfo, 2, 0x00010001, uint32(mtp.RootHandle))
	var w bytes.Buffer
	code, params, err := e.dispatch(nil, sendInfoCmd, &dataIn, &w)
	if err != nil || code != mtp.RC_OK {
		t.Fatalf("SendObjectInfo: code %s err %v", code, err)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 response params, got %d", len(params))
	}
	newHandle := params[2]

	var sendDataIn bytes.Buffer
	if err := mtp.WriteDataHeader(&sendDataIn, mtp.OC_SendObject, 3, 5); err != nil {
		t.Fatalf("WriteDataHeader: %v", err)
	}
	sendDataIn.Write([]byte("hello"))

	sendCmd := cmdOf(mtp.OC_SendObject, 3)
	code, _, err = e.dispatch(nil, sendCmd, &sendDataIn, &discard)
	if err != nil || code != mtp.RC_OK {
		t.Fatalf("SendObject: code %s err %v", code, err)
	}

	getCmd := cmdOf(mtp.OC_GetObject, 4, newHandle)
	var getOut bytes.Buffer
	code, _, err = e.dispatch(nil, getCmd, bytes.NewReader(nil), &getOut)
	if err != nil || code != mtp.RC_OK {
		t.Fatalf("GetObject: code %s err %v", code, err)
	}
	if _, err := mtp.ReadDataHeader(&getOut, mtp.OC_GetObject, 4); err != nil {
		t.Fatalf("ReadDataHeader: %v", err)
	}
	if got := getOut.String(); got != "hello" {
		t.Fatalf("got %q want hello", got)
	}
}

func TestSendObjectInfoWithLiteralZeroParentTargetsRoot(t *testing.T) {
	e, _ := newTestEngine(t)

	openCmd := cmdOf(mtp.OC_OpenSession, 1, 1)
	var discard bytes.Buffer
	if _, _, err := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	info := mtp.ObjectInfo{
		ObjectFormat:   uint16(mtp.OFC_Undefined),
		Filename:       "root-note.txt",
		CompressedSize: 3,
	}
	var payload bytes.Buffer
	if err := mtp.Encode(&payload, &info); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var dataIn bytes.Buffer
	if err := mtp.WriteDataHeader(&dataIn, mtp.OC_SendObjectInfo, 2, uint32(payload.Len())); err != nil {
		t.Fatalf("WriteDataHeader: %v", err)
	}
	dataIn.Write(payload.Bytes())

	// Params[1] == 0, the literal wire value for "at the storage root",
	// not mtp.RootHandle — the case opMoveObject/opCopyObject already
	// translate and opSendObjectInfo must too.
	sendInfoCmd := cmdOf(mtp.OC_SendObjectInfo, 2, 0x00010001, 0)
	var w bytes.Buffer
	code, params, err := e.dispatch(nil, sendInfoCmd, &dataIn, &w)
	if err != nil || code != mtp.RC_OK {
		t.Fatalf("SendObjectInfo with parent 0: code %s err %v", code, err)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 response params, got %d", len(params))
	}
}

func TestDispatchGetObjectPropDescEveryProperty(t *testing.T) {
	e, _ := newTestEngine(t)
	openCmd := cmdOf(mtp.OC_OpenSession, 1, 1)
	var discard bytes.Buffer
	if _, _, err := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	props := []uint32{
		uint32(mtp.OPC_StorageID),
		uint32(mtp.OPC_ObjectFormat),
		uint32(mtp.OPC_ObjectSize),
		uint32(mtp.OPC_ObjectFileName),
		uint32(mtp.OPC_DateCreated),
		uint32(mtp.OPC_DateModified),
		uint32(mtp.OPC_ParentObject),
	}
	for i, prop := range props {
		tid := uint32(10 + i)
		cmd := cmdOf(mtp.OC_MTP_GetObjectPropDesc, tid, prop)
		var w bytes.Buffer
		code, _, err := e.dispatch(nil, cmd, bytes.NewReader(nil), &w)
		if err != nil || code != mtp.RC_OK {
			t.Fatalf("GetObjectPropDesc(%#x): code %s err %v", prop, code, err)
		}
		if _, err := mtp.ReadDataHeader(&w, mtp.OC_MTP_GetObjectPropDesc, tid); err != nil {
			t.Fatalf("ReadDataHeader(%#x): %v", prop, err)
		}
	}
}

func TestSendObjectWithoutSendObjectInfoIsRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	openCmd := cmdOf(mtp.OC_OpenSession, 1, 1)
	var discard bytes.Buffer
	if _, _, err := e.dispatch(nil, openCmd, bytes.NewReader(nil), &discard); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	var dataIn bytes.Buffer
	mtp.WriteDataHeader(&dataIn, mtp.OC_SendObject, 2, 0)
	cmd := cmdOf(mtp.OC_SendObject, 2)
	code, _, _ := e.dispatch(nil, cmd, &dataIn, &discard)
	if code != mtp.RC_NoValidObjectInfo {
		t.Fatalf("got %s want No_Valid_ObjectInfo", code)
	}
}
