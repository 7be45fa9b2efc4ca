package mtp

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"time"
	"unicode/utf8"
)

// byteOrder is the wire byte order for every fixed-width field (§4.A).
var byteOrder = binary.LittleEndian

// DecodeHints carries the extra, runtime-only information the codec needs
// to decode a DataDependentType field: which concrete type a selector
// names, and whether an Array's length prefix is the 2-byte PropDesc form
// instead of the ordinary 4-byte one.
type DecodeHints struct {
	Selector DataTypeSelector
	PropDesc bool
}

// decodeStr reads a length-prefixed UCS-2 string: a single byte holding
// the number of UCS-2 code units including the terminating NUL (zero means
// the string is absent), followed by that many 2-byte code units.
func decodeStr(r io.Reader) (string, error) {
	var szSlice [1]byte
	if _, err := io.ReadFull(r, szSlice[:]); err != nil {
		return "", err
	}
	sz := int(szSlice[0])
	if sz == 0 {
		return "", nil
	}

	data := make([]byte, 2*sz)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}

	utfStr := make([]byte, 4*sz)
	w := 0
	for i := 0; i < 2*sz; i += 2 {
		cp := byteOrder.Uint16(data[i:])
		w += utf8.EncodeRune(utfStr[w:], rune(cp))
	}
	if w > 0 && utfStr[w-1] == 0 {
		w--
	}
	return string(utfStr[:w]), nil
}

func encodeStr(buf []byte, s string) ([]byte, error) {
	if s == "" {
		buf = append(buf[:0], 0)
		return buf, nil
	}

	codepoints := 0
	buf = append(buf[:0], 0)

	var char [2]byte
	for _, r := range s {
		byteOrder.PutUint16(char[:], uint16(r))
		buf = append(buf, char[0], char[1])
		codepoints++
	}
	buf = append(buf, 0, 0)
	codepoints++
	if codepoints > 254 {
		return nil, fmt.Errorf("mtp: string too long for wire format")
	}

	buf[0] = byte(codepoints)
	return buf, nil
}

func encodeStrField(w io.Writer, f reflect.Value) error {
	out := make([]byte, 0, 2*f.Len()+4)
	enc, err := encodeStr(out, f.Interface().(string))
	if err != nil {
		return err
	}
	_, err = w.Write(enc)
	return err
}

func kindSize(k reflect.Kind) int {
	switch k {
	case reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32:
		return 4
	case reflect.Int64, reflect.Uint64:
		return 8
	default:
		panic(fmt.Sprintf("mtp: unknown kind %v", k))
	}
}

var nullValue reflect.Value

// decodeArray reads an Array<T>: a count prefix (4 bytes normally, 2 bytes
// inside a property descriptor's enumeration form) followed by that many
// fixed-width elements.
func decodeArray(r io.Reader, t reflect.Type, hint DecodeHints) (reflect.Value, error) {
	var sz int
	if hint.PropDesc {
		var s uint16
		if err := binary.Read(r, byteOrder, &s); err != nil {
			return nullValue, err
		}
		sz = int(s)
	} else {
		var s uint32
		if err := binary.Read(r, byteOrder, &s); err != nil {
			return nullValue, err
		}
		sz = int(s)
	}

	kind := t.Elem().Kind()
	ksz := 0
	if kind == reflect.Interface {
		ksz = kindSize(InstantiateType(hint).Kind())
	} else {
		ksz = kindSize(kind)
	}

	data := make([]byte, sz*ksz)
	if _, err := io.ReadFull(r, data); err != nil {
		return nullValue, err
	}

	slice := reflect.MakeSlice(t, sz, sz)
	for i := 0; i < sz; i++ {
		from := data[i*ksz:]
		var val uint64
		switch ksz {
		case 1:
			val = uint64(from[0])
		case 2:
			val = uint64(byteOrder.Uint16(from))
		case 4:
			val = uint64(byteOrder.Uint32(from))
		case 8:
			val = byteOrder.Uint64(from)
		}

		if kind == reflect.Interface {
			slice.Index(i).Set(reflect.ValueOf(val))
		} else {
			slice.Index(i).SetUint(val)
		}
	}
	return slice, nil
}

func encodeArray(w io.Writer, val reflect.Value) error {
	sz := uint32(val.Len())
	if err := binary.Write(w, byteOrder, &sz); err != nil {
		return err
	}

	kind := val.Type().Elem().Kind()
	ksz := 0
	if kind == reflect.Interface && sz > 0 {
		ksz = kindSize(val.Index(0).Elem().Kind())
	} else {
		ksz = kindSize(kind)
	}
	data := make([]byte, int(sz)*ksz)
	for i := 0; i < int(sz); i++ {
		elt := val.Index(i)
		if kind == reflect.Interface {
			elt = elt.Elem()
		}
		to := data[i*ksz:]

		switch elt.Kind() {
		case reflect.Uint8:
			to[0] = byte(elt.Uint())
		case reflect.Uint16:
			byteOrder.PutUint16(to, uint16(elt.Uint()))
		case reflect.Uint32:
			byteOrder.PutUint32(to, uint32(elt.Uint()))
		case reflect.Uint64:
			byteOrder.PutUint64(to, elt.Uint())
		case reflect.Int8:
			to[0] = byte(elt.Int())
		case reflect.Int16:
			byteOrder.PutUint16(to, uint16(elt.Int()))
		case reflect.Int32:
			byteOrder.PutUint32(to, uint32(elt.Int()))
		case reflect.Int64:
			byteOrder.PutUint64(to, uint64(elt.Int()))
		default:
			return fmt.Errorf("mtp: cannot encode array element kind %v", elt.Kind())
		}
	}
	_, err := w.Write(data)
	return err
}

var timeType = reflect.ValueOf(time.Now()).Type()

// timeFormat is the DateTime wire layout: "YYYYMMDDThhmmss", a 15-character
// string whose length-prefixed encoding is always N=16 (15 characters plus
// the NUL terminator).
const timeFormat = "20060102T150405"

func encodeTime(w io.Writer, f reflect.Value) error {
	t := f.Interface().(time.Time)
	s := ""
	if !t.IsZero() {
		s = t.Format(timeFormat)
	}
	out := make([]byte, 0, 2*len(s)+3)
	enc, err := encodeStr(out, s)
	if err != nil {
		return err
	}
	_, err = w.Write(enc)
	return err
}

func decodeTime(r io.Reader, f reflect.Value) error {
	s, err := decodeStr(r)
	if err != nil {
		return err
	}
	var t time.Time
	if s != "" {
		t, err = time.Parse(timeFormat, s)
		if err != nil {
			return fmt.Errorf("mtp: decode DateTime %q: %w", s, err)
		}
	}
	f.Set(reflect.ValueOf(t))
	return nil
}

func decodeField(r io.Reader, f reflect.Value, hint DecodeHints) error {
	if !f.CanAddr() {
		return fmt.Errorf("mtp: field not addressable")
	}

	if f.Type() == timeType {
		return decodeTime(r, f)
	}

	switch f.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.Read(r, byteOrder, f.Addr().Interface())
	case reflect.String:
		s, err := decodeStr(r)
		if err != nil {
			return err
		}
		f.SetString(s)
	case reflect.Slice:
		sl, err := decodeArray(r, f.Type(), hint)
		if err != nil {
			return err
		}
		f.Set(sl)
	case reflect.Interface:
		val := InstantiateType(hint)
		if err := decodeField(r, val, hint); err != nil {
			return err
		}
		f.Set(val)
	default:
		return fmt.Errorf("mtp: cannot decode field kind %v", f.Kind())
	}
	return nil
}

func encodeField(w io.Writer, f reflect.Value) error {
	if f.Type() == timeType {
		return encodeTime(w, f)
	}

	switch f.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.Write(w, byteOrder, f.Interface())
	case reflect.String:
		return encodeStrField(w, f)
	case reflect.Slice:
		return encodeArray(w, f)
	case reflect.Interface:
		elem := f.Elem()
		if !elem.IsValid() {
			return fmt.Errorf("mtp: cannot encode nil DataDependentType field")
		}
		return encodeField(w, elem)
	default:
		return fmt.Errorf("mtp: cannot encode field kind %v", f.Kind())
	}
}

// Decoder is implemented by types (DevicePropDesc, ObjectPropDesc) whose
// trailing Form field needs a type switch the generic struct walk can't
// express.
type Decoder interface {
	Decode(r io.Reader) error
}

type Encoder interface {
	Encode(w io.Writer) error
}

// Decode reads the wire encoding of iface's fields, in declaration order,
// into iface. iface must be a pointer to a struct.
func Decode(r io.Reader, iface interface{}) error {
	if d, ok := iface.(Decoder); ok {
		return d.Decode(r)
	}
	return decodeWithHint(r, iface, DecodeHints{})
}

func decodeWithHint(r io.Reader, iface interface{}, hint DecodeHints) error {
	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("mtp: Decode needs a pointer, got %T", iface)
	}
	val = val.Elem()
	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		if err := decodeField(r, val.Field(i), hint); err != nil {
			return err
		}
		// A DataTypeSelector field governs how later DataDependentType
		// fields in the same struct are decoded.
		if t.Field(i).Type.Name() == "DataTypeSelector" {
			hint.Selector = val.Field(i).Interface().(DataTypeSelector)
		}
	}
	return nil
}

// Encode writes iface's fields, in declaration order, in wire encoding.
// iface must be a pointer to a struct.
func Encode(w io.Writer, iface interface{}) error {
	if e, ok := iface.(Encoder); ok {
		return e.Encode(w)
	}

	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("mtp: Encode needs a pointer, got %T", iface)
	}
	val = val.Elem()
	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		if err := encodeField(w, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// InstantiateType returns an addressable zero value of the Go type a
// DataTypeSelector names, for decoding a DataDependentType field.
func InstantiateType(hint DecodeHints) reflect.Value {
	var val interface{}
	switch hint.Selector {
	case DTC_INT8:
		v := int8(0)
		val = &v
	case DTC_UINT8:
		v := uint8(0)
		val = &v
	case DTC_INT16:
		v := int16(0)
		val = &v
	case DTC_UINT16:
		v := uint16(0)
		val = &v
	case DTC_INT32:
		v := int32(0)
		val = &v
	case DTC_UINT32:
		v := uint32(0)
		val = &v
	case DTC_INT64:
		v := int64(0)
		val = &v
	case DTC_UINT64:
		v := uint64(0)
		val = &v
	case DTC_STR:
		s := ""
		val = &s
	default:
		panic(fmt.Sprintf("mtp: unknown DataTypeSelector %#x", uint16(hint.Selector)))
	}
	return reflect.ValueOf(val).Elem()
}

func decodePropDescForm(r io.Reader, hint DecodeHints, formFlag uint8) (DataDependentType, error) {
	switch formFlag {
	case DPFF_Range:
		f := PropDescRangeForm{}
		if err := decodeWithHint(r, &f, hint); err != nil {
			return nil, err
		}
		return &f, nil
	case DPFF_Enumeration:
		f := PropDescEnumForm{}
		if err := decodeWithHint(r, &f, hint); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, nil
	}
}

func (pd *ObjectPropDesc) Decode(r io.Reader) error {
	if err := Decode(r, &pd.ObjectPropDescFixed); err != nil {
		return err
	}
	form, err := decodePropDescForm(r, DecodeHints{Selector: pd.DataType, PropDesc: true}, pd.FormFlag)
	pd.Form = form
	return err
}

func (pd *DevicePropDesc) Decode(r io.Reader) error {
	if err := Decode(r, &pd.DevicePropDescFixed); err != nil {
		return err
	}
	form, err := decodePropDescForm(r, DecodeHints{Selector: pd.DataType, PropDesc: true}, pd.FormFlag)
	pd.Form = form
	return err
}

func (pd *DevicePropDesc) Encode(w io.Writer) error {
	if err := Encode(w, &pd.DevicePropDescFixed); err != nil {
		return err
	}
	if pd.Form == nil {
		return nil
	}
	return Encode(w, pd.Form)
}

func (pd *ObjectPropDesc) Encode(w io.Writer) error {
	if err := Encode(w, &pd.ObjectPropDescFixed); err != nil {
		return err
	}
	if pd.Form == nil {
		return nil
	}
	return Encode(w, pd.Form)
}
