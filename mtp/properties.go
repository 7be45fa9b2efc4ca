package mtp

// The property registry is static: it does not depend on session state,
// only on which object format or device property is being asked about.
// Grounded on original_source/src/mtp_properties.cpp's get_device_prop_desc
// / get_device_prop_value / get_object_props_supported /
// get_object_prop_desc, reusing this package's existing DevicePropDesc /
// ObjectPropDesc / codec support for property forms rather than a new one.

const (
	deviceFriendlyName     = "mtpd"
	synchronizationPartner = "go-mtpd"
)

// GetDevicePropDesc fills in the descriptor for one of the two supported
// device properties. ok is false for any other property code
// (DeviceProp_Not_Supported).
func GetDevicePropDesc(property DevicePropertyCode) (DevicePropDesc, bool) {
	switch property {
	case DPC_DeviceFriendlyName:
		return DevicePropDesc{
			DevicePropDescFixed: DevicePropDescFixed{
				DevicePropertyCode:  uint16(property),
				DataType:            DTC_STR,
				GetSet:              DPGS_Get,
				FactoryDefaultValue: deviceFriendlyName,
				CurrentValue:        deviceFriendlyName,
				FormFlag:            DPFF_None,
			},
		}, true
	case DPC_SynchronizationPartner:
		return DevicePropDesc{
			DevicePropDescFixed: DevicePropDescFixed{
				DevicePropertyCode:  uint16(property),
				DataType:            DTC_STR,
				GetSet:              DPGS_Get,
				FactoryDefaultValue: synchronizationPartner,
				CurrentValue:        synchronizationPartner,
				FormFlag:            DPFF_None,
			},
		}, true
	default:
		return DevicePropDesc{}, false
	}
}

// GetDevicePropValue returns the current value of a device property.
func GetDevicePropValue(property DevicePropertyCode) (string, bool) {
	switch property {
	case DPC_DeviceFriendlyName:
		return deviceFriendlyName, true
	case DPC_SynchronizationPartner:
		return synchronizationPartner, true
	default:
		return "", false
	}
}

// ObjectPropsSupported lists the object properties defined for a given
// object format. Only Undefined (plain files) and Association
// (directories) are recognized, matching the two format codes this
// responder ever assigns to an object.
func ObjectPropsSupported(format ObjectFormatCode) ([]uint16, bool) {
	switch format {
	case OFC_Undefined:
		return []uint16{
			uint16(OPC_StorageID),
			uint16(OPC_ObjectFormat),
			uint16(OPC_ObjectSize),
			uint16(OPC_ObjectFileName),
			uint16(OPC_DateCreated),
			uint16(OPC_DateModified),
			uint16(OPC_ParentObject),
		}, true
	case OFC_Association:
		return []uint16{
			uint16(OPC_StorageID),
			uint16(OPC_ObjectFormat),
			uint16(OPC_ObjectFileName),
			uint16(OPC_ParentObject),
		}, true
	default:
		return nil, false
	}
}

// GetObjectPropDesc returns the descriptor for a single object property,
// independent of any particular object.
func GetObjectPropDesc(property ObjectPropertyCode) (ObjectPropDesc, bool) {
	switch property {
	case OPC_StorageID:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_UINT32,
			FactoryDefaultValue: uint32(0), FormFlag: DPFF_None,
		}}, true
	case OPC_ObjectFormat:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_UINT16,
			FactoryDefaultValue: uint16(OFC_Undefined), FormFlag: DPFF_None,
		}}, true
	case OPC_ObjectSize:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_UINT64,
			FactoryDefaultValue: uint64(0), FormFlag: DPFF_None,
		}}, true
	case OPC_ObjectFileName:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_STR, GetSet: DPGS_GetSet,
			FactoryDefaultValue: "", FormFlag: DPFF_None,
		}}, true
	case OPC_DateCreated:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_STR,
			FactoryDefaultValue: "", FormFlag: DPFF_None,
		}}, true
	case OPC_DateModified:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_STR,
			FactoryDefaultValue: "", FormFlag: DPFF_None,
		}}, true
	case OPC_ParentObject:
		return ObjectPropDesc{ObjectPropDescFixed: ObjectPropDescFixed{
			ObjectPropertyCode: uint16(property), DataType: DTC_UINT32,
			FactoryDefaultValue: uint32(0), FormFlag: DPFF_None,
		}}, true
	default:
		return ObjectPropDesc{}, false
	}
}
