// Package mtp implements the wire format of the Media Transfer Protocol
// (ISO 15740 / PTP): the binary codec, the packet framing, the object
// handle model, and the static device/object property registry used by a
// responder. The numeric codes below are the subset of the standard that
// the operations this module implements actually touch; a full PTP stack
// defines several hundred more (mostly vendor extension) codes that have
// no handler here.
package mtp

// PacketType identifies the four kinds of packet on an MTP bulk pipe.
type PacketType uint16

const (
	PT_Undefined PacketType = 0
	PT_Command   PacketType = 1
	PT_Data      PacketType = 2
	PT_Response  PacketType = 3
	PT_Event     PacketType = 4
)

// OperationCode identifies an MTP operation carried in a Command packet.
type OperationCode uint16

const (
	OC_GetDeviceInfo    OperationCode = 0x1001
	OC_OpenSession      OperationCode = 0x1002
	OC_CloseSession     OperationCode = 0x1003
	OC_GetStorageIDs    OperationCode = 0x1004
	OC_GetStorageInfo   OperationCode = 0x1005
	OC_GetObjectHandles OperationCode = 0x1007
	OC_GetObjectInfo    OperationCode = 0x1008
	OC_GetObject        OperationCode = 0x1009
	OC_DeleteObject     OperationCode = 0x100B
	OC_SendObjectInfo   OperationCode = 0x100C
	OC_SendObject       OperationCode = 0x100D
	OC_GetDevicePropDesc  OperationCode = 0x1014
	OC_GetDevicePropValue OperationCode = 0x1015
	OC_MoveObject       OperationCode = 0x1019
	OC_CopyObject       OperationCode = 0x101A
	OC_GetPartialObject OperationCode = 0x101B

	OC_MTP_GetObjectPropsSupported OperationCode = 0x9801
	OC_MTP_GetObjectPropDesc       OperationCode = 0x9802
	OC_MTP_GetObjectPropValue      OperationCode = 0x9803
	OC_MTP_SetObjectPropValue      OperationCode = 0x9804
)

var operationNames = map[OperationCode]string{
	OC_GetDeviceInfo:               "GetDeviceInfo",
	OC_OpenSession:                 "OpenSession",
	OC_CloseSession:                "CloseSession",
	OC_GetStorageIDs:               "GetStorageIDs",
	OC_GetStorageInfo:              "GetStorageInfo",
	OC_GetObjectHandles:            "GetObjectHandles",
	OC_GetObjectInfo:               "GetObjectInfo",
	OC_GetObject:                   "GetObject",
	OC_DeleteObject:                "DeleteObject",
	OC_SendObjectInfo:              "SendObjectInfo",
	OC_SendObject:                  "SendObject",
	OC_GetDevicePropDesc:           "GetDevicePropDesc",
	OC_GetDevicePropValue:          "GetDevicePropValue",
	OC_MoveObject:                  "MoveObject",
	OC_CopyObject:                  "CopyObject",
	OC_GetPartialObject:            "GetPartialObject",
	OC_MTP_GetObjectPropsSupported: "GetObjectPropsSupported",
	OC_MTP_GetObjectPropDesc:       "GetObjectPropDesc",
	OC_MTP_GetObjectPropValue:      "GetObjectPropValue",
	OC_MTP_SetObjectPropValue:      "SetObjectPropValue",
}

func (c OperationCode) String() string {
	if n, ok := operationNames[c]; ok {
		return n
	}
	return "OperationCode(unknown)"
}

// ResponseCode identifies the outcome of an operation, carried in a
// Response packet's Code field.
type ResponseCode uint16

const (
	RC_OK                                  ResponseCode = 0x2001
	RC_GeneralError                        ResponseCode = 0x2002
	RC_SessionNotOpen                      ResponseCode = 0x2003
	RC_InvalidTransactionID                ResponseCode = 0x2004
	RC_OperationNotSupported               ResponseCode = 0x2005
	RC_ParameterNotSupported                ResponseCode = 0x2006
	RC_IncompleteTransfer                  ResponseCode = 0x2007
	RC_InvalidStorageID                    ResponseCode = 0x2008
	RC_InvalidObjectHandle                 ResponseCode = 0x2009
	RC_DevicePropNotSupported              ResponseCode = 0x200A
	RC_StoreFull                           ResponseCode = 0x200C
	RC_ObjectWriteProtected                ResponseCode = 0x200D
	RC_StoreReadOnly                       ResponseCode = 0x200E
	RC_AccessDenied                        ResponseCode = 0x200F
	RC_PartialDeletion                     ResponseCode = 0x2012
	RC_StoreNotAvailable                   ResponseCode = 0x2013
	RC_SpecificationByFormatUnsupported    ResponseCode = 0x2014
	RC_NoValidObjectInfo                   ResponseCode = 0x2015
	RC_InvalidParentObject                 ResponseCode = 0x201A
	RC_InvalidParameter                    ResponseCode = 0x201D
	RC_SessionAlreadyOpened                ResponseCode = 0x201E
	RC_SpecificationByGroupUnsupported     ResponseCode = 0x2020
	RC_InvalidObjectPropCode               ResponseCode = 0xA801
)

var responseNames = map[ResponseCode]string{
	RC_OK:                               "OK",
	RC_GeneralError:                     "General_Error",
	RC_SessionNotOpen:                   "Session_Not_Open",
	RC_InvalidTransactionID:             "Invalid_TransactionID",
	RC_OperationNotSupported:            "Operation_Not_Supported",
	RC_ParameterNotSupported:            "Parameter_Not_Supported",
	RC_IncompleteTransfer:               "Incomplete_Transfer",
	RC_InvalidStorageID:                 "Invalid_StorageID",
	RC_InvalidObjectHandle:              "Invalid_ObjectHandle",
	RC_DevicePropNotSupported:           "DeviceProp_Not_Supported",
	RC_StoreFull:                       "Store_Full",
	RC_ObjectWriteProtected:             "Object_WriteProtected",
	RC_StoreReadOnly:                   "Store_Read_Only",
	RC_AccessDenied:                     "Access_Denied",
	RC_PartialDeletion:                  "Partial_Deletion",
	RC_StoreNotAvailable:                "Store_Not_Available",
	RC_SpecificationByFormatUnsupported: "Specification_By_Format_Unsupported",
	RC_NoValidObjectInfo:                "No_Valid_ObjectInfo",
	RC_InvalidParentObject:              "Invalid_Parent_Object",
	RC_InvalidParameter:                 "Invalid_Parameter",
	RC_SessionAlreadyOpened:             "Session_Already_Opened",
	RC_SpecificationByGroupUnsupported:  "Specification_By_Group_Unsupported",
	RC_InvalidObjectPropCode:            "Invalid_ObjectPropCode",
}

func (c ResponseCode) String() string {
	if n, ok := responseNames[c]; ok {
		return n
	}
	return "ResponseCode(unknown)"
}

// RCError is a ResponseCode rendered as a Go error, the way the teacher's
// mtp/device.go renders its own RCError(uint16) wire codes.
type RCError ResponseCode

func (e RCError) Error() string {
	if n, ok := responseNames[ResponseCode(e)]; ok {
		return n
	}
	return "ResponseCode(unknown)"
}

// SyncError indicates the engine lost lockstep with the transport: a
// Data or Response packet carried a TransactionID that didn't match the
// Command packet that opened the transaction.
type SyncError string

func (s SyncError) Error() string { return string(s) }

// Catastrophic marks a transport failure severe enough that the command
// loop itself should stop rather than continue to the next transaction.
type Catastrophic string

func (c Catastrophic) Error() string { return string(c) }

// ObjectFormatCode classifies an object: Association is a directory,
// every other code (this module only emits Undefined) is an opaque file.
type ObjectFormatCode uint16

const (
	OFC_Undefined   ObjectFormatCode = 0x3000
	OFC_Association ObjectFormatCode = 0x3001
)

// AssociationType further classifies an Association; this module only
// ever produces GenericFolder.
const AT_GenericFolder uint16 = 0x0001

// DTC_* tag the wire representation of a property value. Untyped so they
// convert implicitly into the distinct DataTypeSelector type the codec
// switches on (see codec.go).
const (
	DTC_UNDEF  = 0x0000
	DTC_INT8   = 0x0001
	DTC_UINT8  = 0x0002
	DTC_INT16  = 0x0003
	DTC_UINT16 = 0x0004
	DTC_INT32  = 0x0005
	DTC_UINT32 = 0x0006
	DTC_INT64  = 0x0007
	DTC_UINT64 = 0x0008
	DTC_STR    = 0xFFFF
)

// ObjectPropertyCode identifies an MTP object property.
type ObjectPropertyCode uint16

const (
	OPC_StorageID       ObjectPropertyCode = 0xDC01
	OPC_ObjectFormat    ObjectPropertyCode = 0xDC02
	OPC_ProtectionStatus ObjectPropertyCode = 0xDC03
	OPC_ObjectSize      ObjectPropertyCode = 0xDC04
	OPC_AssociationType ObjectPropertyCode = 0xDC05
	OPC_AssociationDesc ObjectPropertyCode = 0xDC06
	OPC_ObjectFileName  ObjectPropertyCode = 0xDC07
	OPC_DateCreated     ObjectPropertyCode = 0xDC08
	OPC_DateModified    ObjectPropertyCode = 0xDC09
	OPC_ParentObject    ObjectPropertyCode = 0xDC0B
)

// DevicePropertyCode identifies an MTP device property.
type DevicePropertyCode uint16

const (
	DPC_SynchronizationPartner DevicePropertyCode = 0xD401
	DPC_DeviceFriendlyName     DevicePropertyCode = 0xD402
)

// GetSet flags for a property descriptor's GetSet field.
const (
	DPGS_Get    uint8 = 0x00
	DPGS_GetSet uint8 = 0x01
)

// FormFlag for a property descriptor's FormFlag field.
const (
	DPFF_None        uint8 = 0x00
	DPFF_Range       uint8 = 0x01
	DPFF_Enumeration uint8 = 0x02
)

// StorageType identifies the physical kind of a storage volume.
type StorageType uint16

const (
	ST_FixedRAM     StorageType = 0x0003
	ST_RemovableRAM StorageType = 0x0004
)

// FilesystemType identifies how a storage volume arranges objects.
type FilesystemType uint16

const FST_GenericHierarchical FilesystemType = 0x0002

// AccessCapability identifies what a host is allowed to do to a storage.
type AccessCapability uint16

const (
	AC_ReadWrite          AccessCapability = 0x0000
	AC_ReadOnlyNoDeletion AccessCapability = 0x0001
)

// Standard MTP vendor-extension identification, reported in GetDeviceInfo.
const (
	StandardVersion       uint16 = 100
	VendorExtensionID     uint32 = 6 // "MTP"
	VendorExtensionVersion uint16 = 110
)
