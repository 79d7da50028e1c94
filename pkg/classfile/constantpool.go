package classfile

import "github.com/pkg/errors"

// Tag identifies a constant pool entry's kind, per the JVM spec's
// CONSTANT_* tag bytes.
type Tag byte

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagInvokeDynamic      Tag = 18
)

// ConstantPoolEntry is one slot of a class's constant pool. Only the fields
// relevant to the entry's Tag are populated; everything else the core
// ignores (spec §3: "other tags the core ignores"), but is still parsed so
// the reader can skip correctly-sized entries and resolve the methodref
// chain for invokestatic.
type ConstantPoolEntry struct {
	Tag Tag

	// TagInteger
	IntVal int32

	// TagUtf8
	Utf8 string

	// TagClass, TagString, TagMethodType
	NameIndex uint16

	// TagFieldref, TagMethodref, TagInterfaceMethodref
	ClassIndex       uint16
	NameAndTypeIndex uint16

	// TagNameAndType
	DescriptorIndex uint16
}

// IntValue returns the entry's integer value, if it is a CONSTANT_Integer.
func (e ConstantPoolEntry) IntValue() (int32, bool) {
	if e.Tag != TagInteger {
		return 0, false
	}
	return e.IntVal, true
}

// constantPool is 1-indexed: index 0 is an unused placeholder, matching the
// JVM spec's constant_pool_count convention (count is entries+1).
type constantPool []ConstantPoolEntry

func (p constantPool) at(index uint16) (ConstantPoolEntry, bool) {
	if int(index) <= 0 || int(index) >= len(p) {
		return ConstantPoolEntry{}, false
	}
	return p[index], true
}

func (p constantPool) utf8At(index uint16) (string, bool) {
	e, ok := p.at(index)
	if !ok || e.Tag != TagUtf8 {
		return "", false
	}
	return e.Utf8, true
}

func parseConstantPool(r *reader) (constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, errors.Wrap(err, "classfile: reading constant_pool_count")
	}

	pool := make(constantPool, count)
	for i := 1; i < int(count); i++ {
		tagByte, err := r.u1()
		if err != nil {
			return nil, errors.Wrapf(err, "classfile: reading tag of constant pool entry %d", i)
		}

		entry, extraSlot, err := parseConstantPoolEntry(r, Tag(tagByte))
		if err != nil {
			return nil, errors.Wrapf(err, "classfile: parsing constant pool entry %d", i)
		}
		pool[i] = entry

		// CONSTANT_Long and CONSTANT_Double occupy two consecutive indices;
		// not reachable by well-formed input under this spec's Non-goals,
		// but skipped correctly so the rest of the pool still parses.
		if extraSlot {
			i++
		}
	}
	return pool, nil
}

func parseConstantPoolEntry(r *reader, tag Tag) (ConstantPoolEntry, bool, error) {
	switch tag {
	case TagUtf8:
		length, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		b, err := r.bytes(int(length))
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, Utf8: string(b)}, false, nil

	case TagInteger:
		v, err := r.i4()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, IntVal: v}, false, nil

	case TagFloat:
		if _, err := r.u4(); err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag}, false, nil

	case TagLong, TagDouble:
		if _, err := r.u4(); err != nil {
			return ConstantPoolEntry{}, false, err
		}
		if _, err := r.u4(); err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag}, true, nil

	case TagClass, TagMethodType:
		idx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, NameIndex: idx}, false, nil

	case TagString:
		idx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, NameIndex: idx}, false, nil

	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		classIdx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		natIdx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, ClassIndex: classIdx, NameAndTypeIndex: natIdx}, false, nil

	case TagNameAndType:
		nameIdx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, NameIndex: nameIdx, DescriptorIndex: descIdx}, false, nil

	case TagMethodHandle:
		if _, err := r.u1(); err != nil { // reference_kind
			return ConstantPoolEntry{}, false, err
		}
		idx, err := r.u2() // reference_index
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, NameIndex: idx}, false, nil

	case TagInvokeDynamic:
		if _, err := r.u2(); err != nil { // bootstrap_method_attr_index
			return ConstantPoolEntry{}, false, err
		}
		natIdx, err := r.u2()
		if err != nil {
			return ConstantPoolEntry{}, false, err
		}
		return ConstantPoolEntry{Tag: tag, NameAndTypeIndex: natIdx}, false, nil

	default:
		return ConstantPoolEntry{}, false, errors.Errorf("classfile: unsupported constant pool tag %d", tag)
	}
}
