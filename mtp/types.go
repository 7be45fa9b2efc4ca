package mtp

import "time"

// PacketHeader is the 12-byte header in front of every packet on the bulk
// pipe: total packet length (including this header), packet type, the
// command/response/event code, and the transaction this packet belongs to.
type PacketHeader struct {
	Length        uint32
	Type          uint16
	Code          uint16
	TransactionID uint32
}

const PacketHeaderLen = 4 + 2 + 2 + 4

// MaxParams is the maximum number of uint32 parameters a Command or
// Response packet carries.
const MaxParams = 5

// CommandPacket is a Command-type packet: a header plus up to MaxParams
// parameters.
type CommandPacket struct {
	Header PacketHeader
	Params [MaxParams]uint32
	NParam int
}

// ResponsePacket is a Response-type packet: a header plus up to MaxParams
// parameters.
type ResponsePacket struct {
	Header PacketHeader
	Params [MaxParams]uint32
	NParam int
}

// DeviceInfo is the dataset returned by GetDeviceInfo.
type DeviceInfo struct {
	StandardVersion           uint16
	VendorExtensionID         uint32
	VendorExtensionVersion    uint16
	VendorExtensionDesc       string
	FunctionalMode            uint16
	OperationsSupported       []uint16
	EventsSupported           []uint16
	DevicePropertiesSupported []uint16
	CaptureFormats            []uint16
	PlaybackFormats           []uint16
	Manufacturer              string
	Model                     string
	DeviceVersion             string
	SerialNumber              string
}

// StorageInfo is the dataset returned by GetStorageInfo.
type StorageInfo struct {
	StorageType        uint16
	FilesystemType     uint16
	AccessCapability   uint16
	MaxCapability      uint64
	FreeSpaceInBytes   uint64
	FreeSpaceInImages  uint32
	StorageDescription string
	VolumeLabel        string
}

// ObjectInfo is the dataset exchanged by GetObjectInfo and SendObjectInfo.
// Field order matches the wire layout exactly (original_source's
// mtp_storage.hpp ObjectInfo, and the teacher's mtp/types.go of the same
// name): reordering any field here changes the bytes on the wire.
type ObjectInfo struct {
	StorageID           uint32
	ObjectFormat        uint16
	ProtectionStatus    uint16
	CompressedSize      uint32
	ThumbFormat         uint16
	ThumbCompressedSize uint32
	ThumbPixWidth       uint32
	ThumbPixHeight      uint32
	ImagePixWidth       uint32
	ImagePixHeight      uint32
	ImageBitDepth       uint32
	ParentObject        uint32
	AssociationType     uint16
	AssociationDesc     uint32
	SequenceNumber      uint32
	Filename            string
	CaptureDate         time.Time
	ModificationDate    time.Time
	Keywords            string
}

// DataTypeSelector tags which concrete Go type a DataDependentType field
// holds, so the codec knows how many bytes to read for it. It is a
// distinct named type (not an alias for DataTypeCode) so the codec can
// recognize a struct field as a selector by its reflect.Type name.
type DataTypeSelector uint16

// DataDependentType is the placeholder type for property values and range
// bounds whose width is determined at runtime by a DataTypeSelector.
type DataDependentType interface{}

type PropDescRangeForm struct {
	MinimumValue DataDependentType
	MaximumValue DataDependentType
	StepSize     DataDependentType
}

type PropDescEnumForm struct {
	Values []DataDependentType
}

type DevicePropDescFixed struct {
	DevicePropertyCode  uint16
	DataType            DataTypeSelector
	GetSet              uint8
	FactoryDefaultValue DataDependentType
	CurrentValue        DataDependentType
	FormFlag            uint8
}

// DevicePropDesc is the dataset returned by GetDevicePropDesc.
type DevicePropDesc struct {
	DevicePropDescFixed
	Form interface{}
}

type ObjectPropDescFixed struct {
	ObjectPropertyCode  uint16
	DataType            DataTypeSelector
	GetSet              uint8
	FactoryDefaultValue DataDependentType
	GroupCode           uint32
	FormFlag            uint8
}

// ObjectPropDesc is the dataset returned by GetObjectPropDesc.
type ObjectPropDesc struct {
	ObjectPropDescFixed
	Form interface{}
}

type Uint16Array struct{ Values []uint16 }
type Uint32Array struct{ Values []uint32 }
type Uint16Value struct{ Value uint16 }
type Uint32Value struct{ Value uint32 }
type Uint64Value struct{ Value uint64 }
type StringValue struct{ Value string }
type TimeValue struct{ Value time.Time }
