package engine

import (
	"bytes"
	"io"
	"time"

	"github.com/pconrad/go-mtpd/mtp"
)

// rateWindow is how far back getRate/sendRate average throughput over.
const rateWindow = 5 * time.Second

// opHandler serves one transaction's worth of a given opcode: it may
// read a Data-phase payload from r, write one to w, and returns the
// Response packet's code and parameters. Returning a non-nil error that
// is not an mtp.Catastrophic is equivalent to returning (RC_GeneralError
// or the wrapped mtp.RCError, nil) — Engine.Serve does the unwrapping
// so each handler can just `return 0, nil, err`.
type opHandler func(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error)

// opTable mirrors original_source/src/mtp_server.cpp's handle_request
// switch, keyed by opcode instead of switch-cased, matching the table
// style the teacher's own mtp/server.go uses for its HTTP routes.
var opTable = map[mtp.OperationCode]opHandler{
	mtp.OC_GetDeviceInfo:               opGetDeviceInfo,
	mtp.OC_OpenSession:                 opOpenSession,
	mtp.OC_CloseSession:                opCloseSession,
	mtp.OC_GetStorageIDs:               opGetStorageIDs,
	mtp.OC_GetStorageInfo:              opGetStorageInfo,
	mtp.OC_GetObjectHandles:            opGetObjectHandles,
	mtp.OC_GetObjectInfo:               opGetObjectInfo,
	mtp.OC_GetObject:                   opGetObject,
	mtp.OC_DeleteObject:                opDeleteObject,
	mtp.OC_SendObjectInfo:              opSendObjectInfo,
	mtp.OC_SendObject:                  opSendObject,
	mtp.OC_GetDevicePropDesc:           opGetDevicePropDesc,
	mtp.OC_GetDevicePropValue:          opGetDevicePropValue,
	mtp.OC_MoveObject:                  opMoveObject,
	mtp.OC_CopyObject:                  opCopyObject,
	mtp.OC_GetPartialObject:            opGetPartialObject,
	mtp.OC_MTP_GetObjectPropsSupported: opGetObjectPropsSupported,
	mtp.OC_MTP_GetObjectPropDesc:       opGetObjectPropDesc,
	mtp.OC_MTP_GetObjectPropValue:      opGetObjectPropValue,
	mtp.OC_MTP_SetObjectPropValue:      opSetObjectPropValue,
}

var supportedOperations []uint16

func init() {
	ops := make([]uint16, 0, len(opTable))
	for op := range opTable {
		ops = append(ops, uint16(op))
	}
	supportedOperations = ops
}

var supportedEvents = []uint16{0} // Undefined only; the Event channel is an inert stub.

var supportedDeviceProperties = []uint16{
	uint16(mtp.DPC_DeviceFriendlyName),
	uint16(mtp.DPC_SynchronizationPartner),
}

var supportedCaptureFormats = []uint16{uint16(mtp.OFC_Undefined)}
var supportedPlaybackFormats = []uint16{uint16(mtp.OFC_Undefined), uint16(mtp.OFC_Association)}

func writeDataPhase(w io.Writer, cmd mtp.CommandPacket, v interface{}) error {
	buf := &bytes.Buffer{}
	if err := mtp.Encode(buf, v); err != nil {
		return err
	}
	if err := mtp.WriteDataHeader(w, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func opGetDeviceInfo(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	e.log.Engine.Debug("sending device info")
	info := mtp.DeviceInfo{
		StandardVersion:           mtp.StandardVersion,
		VendorExtensionID:         mtp.VendorExtensionID,
		VendorExtensionVersion:    mtp.VendorExtensionVersion,
		FunctionalMode:            0,
		OperationsSupported:       supportedOperations,
		EventsSupported:           supportedEvents,
		DevicePropertiesSupported: supportedDeviceProperties,
		CaptureFormats:            supportedCaptureFormats,
		PlaybackFormats:           supportedPlaybackFormats,
		Manufacturer:              e.Identity.Manufacturer,
		Model:                     e.Identity.Model,
		DeviceVersion:             e.Identity.DeviceVersion,
		SerialNumber:              e.Identity.SerialNumber,
	}
	if err := writeDataPhase(w, cmd, &info); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opOpenSession(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	if e.sessionOpen.Load() {
		return mtp.RC_SessionAlreadyOpened, nil, nil
	}
	e.sessionID = cmd.Params[0]
	e.sessionOpen.Store(true)
	e.log.Engine.Infof("session %d opened", e.sessionID)
	if e.monitor != nil {
		e.monitor.broadcastSession(true, e.sessionID)
	}
	return mtp.RC_OK, nil, nil
}

func opCloseSession(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	e.log.Engine.Infof("session %d closed", e.sessionID)
	e.sessionOpen.Store(false)
	e.upload = pendingUpload{}
	if e.monitor != nil {
		e.monitor.broadcastSession(false, e.sessionID)
	}
	return mtp.RC_OK, nil, nil
}

func opGetStorageIDs(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	ids := e.Storages.StorageIDs()
	if err := writeDataPhase(w, cmd, &mtp.Uint32Array{Values: ids}); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetStorageInfo(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, err := e.resolveStorage(cmd.Params[0])
	if err != nil {
		return 0, nil, err
	}
	info, err := s.GetStorageInfo()
	if err != nil {
		return 0, nil, err
	}
	if err := writeDataPhase(w, cmd, &info); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetObjectHandles(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	if cmd.Params[1] != 0 {
		return mtp.RC_SpecificationByFormatUnsupported, nil, nil
	}
	s, err := e.resolveStorage(cmd.Params[0])
	if err != nil {
		return 0, nil, err
	}
	object := s.Root()
	if handle := mtp.Handle(cmd.Params[2]); handle != mtp.RootHandle {
		var ok bool
		object, ok = s.FindHandle(handle)
		if !ok {
			return mtp.RC_InvalidObjectHandle, nil, nil
		}
	}
	handles, err := s.GetObjectHandles(object)
	if err != nil {
		return 0, nil, err
	}
	raw := make([]uint32, len(handles))
	for i, h := range handles {
		raw[i] = uint32(h)
	}
	if err := writeDataPhase(w, cmd, &mtp.Uint32Array{Values: raw}); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetObjectInfo(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	info, err := s.GetObjectInfo(object)
	if err != nil {
		return 0, nil, err
	}
	if err := writeDataPhase(w, cmd, &info); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	if err := mtp.WriteDataHeader(w, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID, uint32(object.Size)); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	n, err := s.GetObject(w, object)
	e.getRate.Incr(n)
	if err == nil && n != object.Size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		e.log.Engine.Warningf("short GetObject transfer for %s: %v", object.Path, err)
		return mtp.RC_IncompleteTransfer, nil, nil
	}
	e.log.Engine.Debugf("GetObject throughput: %d B/s", e.getRate.Rate())
	return mtp.RC_OK, nil, nil
}

func opDeleteObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	if cmd.Params[1] != 0 {
		return mtp.RC_SpecificationByFormatUnsupported, nil, nil
	}
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	if err := s.DeleteObject(object); err != nil {
		return mtp.RC_ObjectWriteProtected, nil, nil
	}
	return mtp.RC_OK, nil, nil
}

func opSendObjectInfo(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	payloadLen, err := mtp.ReadDataHeader(r, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID)
	if err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	var info mtp.ObjectInfo
	if err := mtp.Decode(io.LimitReader(r, int64(payloadLen)), &info); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}

	s, err := e.resolveStorage(cmd.Params[0])
	if err != nil {
		return 0, nil, err
	}
	parentHandle := mtp.Handle(cmd.Params[1])
	if parentHandle == 0 {
		parentHandle = mtp.RootHandle
	}
	parent := s.Root()
	if parentHandle != mtp.RootHandle {
		var ok bool
		parent, ok = s.FindHandle(parentHandle)
		if !ok {
			return mtp.RC_InvalidParentObject, nil, nil
		}
	}

	object, err := s.SendObjectInfo(parent, info)
	if err != nil {
		return mtp.RC_StoreFull, nil, nil
	}
	e.upload = pendingUpload{storage: s, object: object}
	return mtp.RC_OK, []uint32{s.ID, cmd.Params[1], uint32(object.Handle)}, nil
}

func opSendObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	if e.upload.object == nil {
		return mtp.RC_NoValidObjectInfo, nil, nil
	}
	upload := e.upload
	e.upload = pendingUpload{}

	payloadLen, err := mtp.ReadDataHeader(r, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID)
	if err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	if err := upload.storage.SendObject(r, upload.object, int64(payloadLen)); err != nil {
		return mtp.RC_IncompleteTransfer, nil, nil
	}
	e.sendRate.Incr(int64(payloadLen))
	e.log.Engine.Debugf("SendObject throughput: %d B/s", e.sendRate.Rate())
	return mtp.RC_OK, nil, nil
}

func opGetDevicePropDesc(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	desc, ok := mtp.GetDevicePropDesc(mtp.DevicePropertyCode(cmd.Params[0]))
	if !ok {
		return mtp.RC_DevicePropNotSupported, nil, nil
	}
	if err := writeDataPhase(w, cmd, &desc); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetDevicePropValue(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	value, ok := mtp.GetDevicePropValue(mtp.DevicePropertyCode(cmd.Params[0]))
	if !ok {
		return mtp.RC_DevicePropNotSupported, nil, nil
	}
	if err := writeDataPhase(w, cmd, &mtp.StringValue{Value: value}); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opMoveObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	if s.ID != cmd.Params[1] {
		return mtp.RC_StoreNotAvailable, nil, nil
	}
	parentHandle := mtp.Handle(cmd.Params[2])
	if parentHandle == 0 {
		parentHandle = mtp.RootHandle
	}
	parent, ok := s.FindHandle(parentHandle)
	if !ok {
		return mtp.RC_InvalidParentObject, nil, nil
	}
	if err := s.MoveObject(object, parent); err != nil {
		return mtp.RC_GeneralError, nil, nil
	}
	return mtp.RC_OK, []uint32{uint32(object.Handle)}, nil
}

func opCopyObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	if s.ID != cmd.Params[1] {
		return mtp.RC_StoreNotAvailable, nil, nil
	}
	parentHandle := mtp.Handle(cmd.Params[2])
	if parentHandle == 0 {
		parentHandle = mtp.RootHandle
	}
	parent, ok := s.FindHandle(parentHandle)
	if !ok {
		return mtp.RC_InvalidParentObject, nil, nil
	}
	copied, err := s.CopyObject(object, parent)
	if err != nil {
		return mtp.RC_StoreNotAvailable, nil, nil
	}
	return mtp.RC_OK, []uint32{uint32(copied.Handle)}, nil
}

func opGetPartialObject(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	offset, size := uint64(cmd.Params[1]), uint64(cmd.Params[2])

	remaining := uint64(object.Size) - offset
	if offset > uint64(object.Size) {
		remaining = 0
	}
	served := size
	if served > remaining {
		served = remaining
	}
	if err := mtp.WriteDataHeader(w, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID, uint32(served)); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	n, err := s.GetPartialObject(w, object, offset, size)
	if err != nil {
		return mtp.RC_IncompleteTransfer, nil, nil
	}
	return mtp.RC_OK, []uint32{uint32(n)}, nil
}

func opGetObjectPropsSupported(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	props, ok := mtp.ObjectPropsSupported(mtp.ObjectFormatCode(cmd.Params[0]))
	if !ok {
		return mtp.RC_InvalidObjectPropCode, nil, nil
	}
	if err := writeDataPhase(w, cmd, &mtp.Uint16Array{Values: props}); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetObjectPropDesc(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	desc, ok := mtp.GetObjectPropDesc(mtp.ObjectPropertyCode(cmd.Params[0]))
	if !ok {
		return mtp.RC_InvalidObjectPropCode, nil, nil
	}
	if err := writeDataPhase(w, cmd, &desc); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opGetObjectPropValue(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	value, err := s.GetObjectPropValue(object, mtp.ObjectPropertyCode(cmd.Params[1]))
	if err != nil {
		return 0, nil, err
	}
	if err := writeDataPhase(w, cmd, wrapPropValue(value)); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	return mtp.RC_OK, nil, nil
}

func opSetObjectPropValue(e *Engine, cmd mtp.CommandPacket, r io.Reader, w io.Writer) (mtp.ResponseCode, []uint32, error) {
	payloadLen, err := mtp.ReadDataHeader(r, mtp.OperationCode(cmd.Header.Code), cmd.Header.TransactionID)
	if err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}
	var name mtp.StringValue
	if err := mtp.Decode(io.LimitReader(r, int64(payloadLen)), &name); err != nil {
		return 0, nil, mtp.Catastrophic(err.Error())
	}

	s, object, err := e.resolveHandle(mtp.Handle(cmd.Params[0]))
	if err != nil {
		return 0, nil, err
	}
	if err := s.SetObjectPropValue(object, mtp.ObjectPropertyCode(cmd.Params[1]), name.Value); err != nil {
		return 0, nil, err
	}
	return mtp.RC_OK, nil, nil
}

// wrapPropValue adapts the interface{} storage.GetObjectPropValue returns
// into one of the codec's named value types so Encode knows its width;
// the codec dispatches on Go struct field kind, not on a bare interface{}.
func wrapPropValue(v interface{}) interface{} {
	switch val := v.(type) {
	case uint32:
		return &mtp.Uint32Value{Value: val}
	case uint16:
		return &mtp.Uint16Value{Value: val}
	case uint64:
		return &mtp.Uint64Value{Value: val}
	case string:
		return &mtp.StringValue{Value: val}
	case time.Time:
		return &mtp.TimeValue{Value: val}
	default:
		return &struct{}{}
	}
}
