package classfile

import "github.com/pkg/errors"

// Method is one method_info entry, with its Code attribute already
// unpacked. Methods without a Code attribute (abstract/native — unreachable
// for a class this interpreter can run, since Non-goals exclude
// inheritance) carry a nil Code and zero MaxStack/MaxLocals.
type Method struct {
	Name       string
	Descriptor string
	MaxStack   int
	MaxLocals  int
	Code       []byte

	paramCount int
}

// ParamCount is the number of parameter slots this method's descriptor
// declares. At this tier every parameter — primitive or reference — occupies
// exactly one local slot.
func (m *Method) ParamCount() int {
	return m.paramCount
}

// Class is a parsed class file: a constant pool and a method table.
type Class struct {
	Name         string
	constantPool constantPool
	methods      []*Method
}

// FindMethod locates a method by its exact name and descriptor.
func (c *Class) FindMethod(name, descriptor string) (*Method, bool) {
	for _, m := range c.methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return nil, false
}

// FindMethodFromIndex resolves a constant-pool methodref at a 1-based index
// to a method within this same class, as invokestatic requires (the core
// never links across classes — Non-goals exclude dynamic linking).
func (c *Class) FindMethodFromIndex(cpIndex uint16) (*Method, bool) {
	ref, ok := c.constantPool.at(cpIndex)
	if !ok || (ref.Tag != TagMethodref && ref.Tag != TagInterfaceMethodref) {
		return nil, false
	}
	nat, ok := c.constantPool.at(ref.NameAndTypeIndex)
	if !ok || nat.Tag != TagNameAndType {
		return nil, false
	}
	name, ok := c.constantPool.utf8At(nat.NameIndex)
	if !ok {
		return nil, false
	}
	descriptor, ok := c.constantPool.utf8At(nat.DescriptorIndex)
	if !ok {
		return nil, false
	}
	return c.FindMethod(name, descriptor)
}

// ConstantInt returns the integer value of the constant pool entry at the
// given 1-based index, as ldc requires.
func (c *Class) ConstantInt(cpIndex uint16) (int32, bool) {
	entry, ok := c.constantPool.at(cpIndex)
	if !ok {
		return 0, false
	}
	return entry.IntValue()
}

// Close releases any resources the reader holds. Parse retains nothing past
// returning, so this is a no-op today — it exists so callers never need to
// reach past the classfile package's interface to clean up.
func (c *Class) Close() error {
	return nil
}

func parseMethod(r *reader, pool constantPool) (*Method, error) {
	if _, err := r.u2(); err != nil { // access_flags
		return nil, err
	}
	nameIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	descIndex, err := r.u2()
	if err != nil {
		return nil, err
	}

	name, ok := pool.utf8At(nameIndex)
	if !ok {
		return nil, errors.Errorf("classfile: method name_index %d is not a Utf8 constant", nameIndex)
	}
	descriptor, ok := pool.utf8At(descIndex)
	if !ok {
		return nil, errors.Errorf("classfile: method descriptor_index %d is not a Utf8 constant", descIndex)
	}

	m := &Method{
		Name:       name,
		Descriptor: descriptor,
		paramCount: paramCount(descriptor),
	}

	attrCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		attrNameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		attrLength, err := r.u4()
		if err != nil {
			return nil, err
		}
		attrName, _ := pool.utf8At(attrNameIndex)
		if attrName != "Code" {
			if _, err := r.bytes(int(attrLength)); err != nil {
				return nil, err
			}
			continue
		}
		if err := parseCodeAttribute(r, m); err != nil {
			return nil, errors.Wrapf(err, "classfile: parsing Code attribute of %s%s", name, descriptor)
		}
	}

	return m, nil
}

// parseCodeAttribute reads a Code_attribute body (the attribute's own
// length has already been consumed by the caller via the generic
// attribute_length field — this function reads exactly the Code_attribute
// layout, which is expected to account for it).
func parseCodeAttribute(r *reader, m *Method) error {
	maxStack, err := r.u2()
	if err != nil {
		return err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return err
	}
	codeLength, err := r.u4()
	if err != nil {
		return err
	}
	code, err := r.bytes(int(codeLength))
	if err != nil {
		return err
	}
	m.MaxStack = int(maxStack)
	m.MaxLocals = int(maxLocals)
	m.Code = append([]byte(nil), code...)

	exceptionTableLength, err := r.u2()
	if err != nil {
		return err
	}
	// start_pc, end_pc, handler_pc, catch_type: four u2 fields per entry.
	// No exception table is consulted at this tier (Non-goals: exceptions).
	if err := skipU2Slice(r, 4*int(exceptionTableLength)); err != nil {
		return err
	}

	return skipAttributes(r)
}

// paramCount derives the number of parameter slots from a method
// descriptor's parameter section, e.g. "(II[I)I" has 3 parameters. Every
// parameter — primitive or reference — counts as exactly one slot, per this
// interpreter's simplified tier (no long/double support to double-count).
func paramCount(descriptor string) int {
	i := 0
	for i < len(descriptor) && descriptor[i] != '(' {
		i++
	}
	i++ // skip '('

	count := 0
	for i < len(descriptor) && descriptor[i] != ')' {
		switch descriptor[i] {
		case '[':
			i++
			continue
		case 'L':
			for i < len(descriptor) && descriptor[i] != ';' {
				i++
			}
			i++
		default:
			i++
		}
		count++
	}
	return count
}
