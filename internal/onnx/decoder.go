package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// ParseFile decodes an ONNX model from a file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path) //nolint:gosec // model path is caller-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model, err := decodeModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// decoder reads protobuf wire format from a byte slice.
type decoder struct {
	data []byte
	pos  int
}

// fields walks every field of the message, invoking visit with the field
// number and wire type. visit must consume the field's payload (or call
// skip); the decoder only advances past the tag itself.
func (d *decoder) fields(visit func(field, wire int) error) error {
	for d.pos < len(d.data) {
		tag, err := d.readVarint()
		if err != nil {
			return err
		}
		field := int(tag >> 3)
		wire := int(tag & 0x7)
		if err := visit(field, wire); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) readVarint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return 0, errors.New("truncated varint")
		}
		b := d.data[d.pos]
		d.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(result), nil //nolint:gosec // protobuf varints fit in int64
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
}

func (d *decoder) readBytes() ([]byte, error) {
	length, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	if length < 0 || d.pos+int(length) > len(d.data) {
		return nil, errors.New("truncated length-delimited field")
	}
	payload := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return payload, nil
}

func (d *decoder) readString() (string, error) {
	payload, err := d.readBytes()
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (d *decoder) readFloat32() (float32, error) {
	if d.pos+4 > len(d.data) {
		return 0, errors.New("truncated float")
	}
	bits := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return math.Float32frombits(bits), nil
}

func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.readVarint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.data) {
			return errors.New("truncated fixed64 field")
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.readBytes()
		return err
	case wire32Bit:
		if d.pos+4 > len(d.data) {
			return errors.New("truncated fixed32 field")
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wire)
	}
}

// packedVarints decodes a packed repeated varint payload.
func packedVarints(data []byte) ([]int64, error) {
	d := &decoder{data: data}
	var values []int64
	for d.pos < len(d.data) {
		v, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// packedFloats decodes a packed repeated float payload.
func packedFloats(data []byte) []float32 {
	values := make([]float32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		values = append(values, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return values
}

// packedDoubles decodes a packed repeated double payload.
func packedDoubles(data []byte) []float64 {
	values := make([]float64, 0, len(data)/8)
	for i := 0; i+8 <= len(data); i += 8 {
		values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(data[i:])))
	}
	return values
}

func decodeModel(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // ir_version
			v, err := d.readVarint()
			m.IRVersion = v
			return err
		case 2: // producer_name
			s, err := d.readString()
			m.ProducerName = s
			return err
		case 3: // producer_version
			s, err := d.readString()
			m.ProducerVersion = s
			return err
		case 7: // graph
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			m.Graph, err = decodeGraph(payload)
			return err
		case 8: // opset_import
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			opset, err := decodeOperatorSet(payload)
			if err != nil {
				return err
			}
			m.OpsetImport = append(m.OpsetImport, opset)
			return nil
		default:
			return d.skip(wire)
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeGraph(data []byte) (*GraphProto, error) {
	g := &GraphProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // node
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			node, err := decodeNode(payload)
			if err != nil {
				return err
			}
			g.Nodes = append(g.Nodes, node)
			return nil
		case 2: // name
			s, err := d.readString()
			g.Name = s
			return err
		case 5: // initializer
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t, err := decodeTensor(payload)
			if err != nil {
				return err
			}
			g.Initializers = append(g.Initializers, t)
			return nil
		case 11: // input
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			vi, err := decodeValueInfo(payload)
			if err != nil {
				return err
			}
			g.Inputs = append(g.Inputs, vi)
			return nil
		case 12: // output
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			vi, err := decodeValueInfo(payload)
			if err != nil {
				return err
			}
			g.Outputs = append(g.Outputs, vi)
			return nil
		default:
			return d.skip(wire)
		}
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func decodeNode(data []byte) (NodeProto, error) {
	n := NodeProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // input
			s, err := d.readString()
			n.Inputs = append(n.Inputs, s)
			return err
		case 2: // output
			s, err := d.readString()
			n.Outputs = append(n.Outputs, s)
			return err
		case 3: // name
			s, err := d.readString()
			n.Name = s
			return err
		case 4: // op_type
			s, err := d.readString()
			n.OpType = s
			return err
		case 5: // attribute
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			attr, err := decodeAttribute(payload)
			if err != nil {
				return err
			}
			n.Attributes = append(n.Attributes, attr)
			return nil
		default:
			return d.skip(wire)
		}
	})
	return n, err
}

func decodeTensor(data []byte) (TensorProto, error) {
	t := TensorProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // dims
			if wire == wireBytes {
				payload, err := d.readBytes()
				if err != nil {
					return err
				}
				dims, err := packedVarints(payload)
				if err != nil {
					return err
				}
				t.Dims = append(t.Dims, dims...)
				return nil
			}
			v, err := d.readVarint()
			t.Dims = append(t.Dims, v)
			return err
		case 2: // data_type
			v, err := d.readVarint()
			t.DataType = int32(v)
			return err
		case 4: // float_data (packed)
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t.FloatData = append(t.FloatData, packedFloats(payload)...)
			return nil
		case 7: // int64_data (packed)
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			values, err := packedVarints(payload)
			if err != nil {
				return err
			}
			t.Int64Data = append(t.Int64Data, values...)
			return nil
		case 8: // name
			s, err := d.readString()
			t.Name = s
			return err
		case 9: // raw_data
			payload, err := d.readBytes()
			t.RawData = payload
			return err
		case 10: // double_data (packed)
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t.DoubleData = append(t.DoubleData, packedDoubles(payload)...)
			return nil
		default:
			return d.skip(wire)
		}
	})
	return t, err
}

func decodeValueInfo(data []byte) (ValueInfoProto, error) {
	vi := ValueInfoProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // name
			s, err := d.readString()
			vi.Name = s
			return err
		case 2: // type
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			vi.Type, err = decodeType(payload)
			return err
		default:
			return d.skip(wire)
		}
	})
	return vi, err
}

func decodeType(data []byte) (*TypeProto, error) {
	t := &TypeProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // tensor_type
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t.TensorType, err = decodeTensorType(payload)
			return err
		default:
			return d.skip(wire)
		}
	})
	return t, err
}

func decodeTensorType(data []byte) (*TensorTypeProto, error) {
	t := &TensorTypeProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // elem_type
			v, err := d.readVarint()
			t.ElemType = int32(v)
			return err
		case 2: // shape
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t.Shape, err = decodeTensorShape(payload)
			return err
		default:
			return d.skip(wire)
		}
	})
	return t, err
}

func decodeTensorShape(data []byte) (*TensorShapeProto, error) {
	s := &TensorShapeProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // dim
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			dim, err := decodeDimension(payload)
			if err != nil {
				return err
			}
			s.Dims = append(s.Dims, dim)
			return nil
		default:
			return d.skip(wire)
		}
	})
	return s, err
}

func decodeDimension(data []byte) (DimensionProto, error) {
	dim := DimensionProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // dim_value
			v, err := d.readVarint()
			dim.DimValue = v
			return err
		case 2: // dim_param
			s, err := d.readString()
			dim.DimParam = s
			return err
		default:
			return d.skip(wire)
		}
	})
	return dim, err
}

func decodeAttribute(data []byte) (AttributeProto, error) {
	a := AttributeProto{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // name
			s, err := d.readString()
			a.Name = s
			return err
		case 2: // f
			v, err := d.readFloat32()
			a.F = v
			return err
		case 3: // i
			v, err := d.readVarint()
			a.I = v
			return err
		case 4: // s
			payload, err := d.readBytes()
			a.S = payload
			return err
		case 5: // t (tensor, used by Constant nodes)
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			t, err := decodeTensor(payload)
			if err != nil {
				return err
			}
			a.T = &t
			return nil
		case 7: // floats (packed)
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			a.Floats = append(a.Floats, packedFloats(payload)...)
			return nil
		case 8: // ints (packed or repeated)
			if wire == wireVarint {
				v, err := d.readVarint()
				a.Ints = append(a.Ints, v)
				return err
			}
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			values, err := packedVarints(payload)
			if err != nil {
				return err
			}
			a.Ints = append(a.Ints, values...)
			return nil
		case 9: // strings
			payload, err := d.readBytes()
			if err != nil {
				return err
			}
			a.Strings = append(a.Strings, payload)
			return nil
		case 20: // type
			v, err := d.readVarint()
			a.Type = int32(v)
			return err
		default:
			return d.skip(wire)
		}
	})
	return a, err
}

func decodeOperatorSet(data []byte) (OperatorSetID, error) {
	o := OperatorSetID{}
	d := &decoder{data: data}
	err := d.fields(func(field, wire int) error {
		switch field {
		case 1: // domain
			s, err := d.readString()
			o.Domain = s
			return err
		case 2: // version
			v, err := d.readVarint()
			o.Version = v
			return err
		default:
			return d.skip(wire)
		}
	})
	return o, err
}
