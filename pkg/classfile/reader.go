// Package classfile parses the subset of the Java class-file binary format
// the interpreter needs: the constant pool, the method table, and each
// method's Code attribute. It is the external collaborator described by the
// interpreter's entry contract — the core never looks at a raw byte stream
// itself, only at the Class/Method/ConstantPoolEntry views this package
// produces.
package classfile

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const magic = 0xCAFEBABE

// reader is a cursor over a class file's raw bytes, in the spirit of the
// hand-rolled big-endian readers every JVM-shaped parser in the wild uses.
type reader struct {
	data   []byte
	offset int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) u1() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u2() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u4() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) i4() (int32, error) {
	v, err := r.u4()
	return int32(v), err
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.offset+n > len(r.data) {
		return nil, errors.Errorf("classfile: unexpected end of file at offset %d wanting %d bytes", r.offset, n)
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// Parse reads a full class file from src and builds the in-memory Class it
// describes.
func Parse(src io.Reader) (*Class, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading class file")
	}

	r := newReader(data)

	got, err := r.u4()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading magic number")
	}
	if got != magic {
		return nil, errors.Errorf("classfile: not a class file (bad magic 0x%08X)", got)
	}
	if _, err := r.u2(); err != nil { // minor_version
		return nil, errors.Wrap(err, "classfile: reading minor version")
	}
	if _, err := r.u2(); err != nil { // major_version
		return nil, errors.Wrap(err, "classfile: reading major version")
	}

	pool, err := parseConstantPool(r)
	if err != nil {
		return nil, err
	}

	if _, err := r.u2(); err != nil { // access_flags
		return nil, errors.Wrap(err, "classfile: reading access flags")
	}
	thisClass, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading this_class")
	}
	if _, err := r.u2(); err != nil { // super_class
		return nil, errors.Wrap(err, "classfile: reading super class")
	}

	interfacesCount, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading interfaces_count")
	}
	if err := skipU2Slice(r, int(interfacesCount)); err != nil {
		return nil, errors.Wrap(err, "classfile: skipping interfaces")
	}

	fieldsCount, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading fields_count")
	}
	for i := 0; i < int(fieldsCount); i++ {
		if err := skipMember(r); err != nil {
			return nil, errors.Wrap(err, "classfile: skipping field")
		}
	}

	methodsCount, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading methods_count")
	}
	methods := make([]*Method, 0, methodsCount)
	for i := 0; i < int(methodsCount); i++ {
		m, err := parseMethod(r, pool)
		if err != nil {
			return nil, errors.Wrap(err, "classfile: parsing method")
		}
		methods = append(methods, m)
	}

	name, _ := pool.utf8At(classNameIndex(pool, thisClass))

	return &Class{
		Name:         name,
		constantPool: pool,
		methods:      methods,
	}, nil
}

// classNameIndex resolves a CONSTANT_Class entry's name_index, i.e. the
// index of the UTF-8 entry holding the class's binary name.
func classNameIndex(pool constantPool, classIndex uint16) uint16 {
	entry, ok := pool.at(classIndex)
	if !ok || entry.Tag != TagClass {
		return 0
	}
	return entry.NameIndex
}

func skipU2Slice(r *reader, count int) error {
	for i := 0; i < count; i++ {
		if _, err := r.u2(); err != nil {
			return err
		}
	}
	return nil
}

// skipMember consumes a field_info or method_info's shared prefix — the
// access_flags/name_index/descriptor_index fields and the attribute table —
// without interpreting any attribute's contents. Used for fields, which the
// interpreter never touches (Non-goals: no object instances or fields).
func skipMember(r *reader) error {
	if _, err := r.u2(); err != nil { // access_flags
		return err
	}
	if _, err := r.u2(); err != nil { // name_index
		return err
	}
	if _, err := r.u2(); err != nil { // descriptor_index
		return err
	}
	return skipAttributes(r)
}

func skipAttributes(r *reader) error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if _, err := r.u2(); err != nil { // attribute_name_index
			return err
		}
		length, err := r.u4()
		if err != nil {
			return err
		}
		if _, err := r.bytes(int(length)); err != nil {
			return err
		}
	}
	return nil
}
