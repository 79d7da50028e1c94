package interp

// instruction is a decoded bytecode instruction: the opcode, its address in
// the code array, and whatever immediates it carries. Decoding up front
// (spec's "tagged variant" redesign note) means an opcode this interpreter
// doesn't recognize is caught before any state is mutated, and the dispatch
// switch only ever reasons about already-valid instructions.
type instruction struct {
	op   Op
	pc   int   // address of the opcode byte itself
	arg  int32 // bipush/sipush value, ldc/local index, branch offset, or getstatic/invoke* index
	arg2 int32 // iinc's const increment (arg holds the local index)
	next int   // pc of the following instruction on fall-through
}

// decode reads the instruction at pc and reports where the next
// instruction starts. Branch instructions report their own address in pc so
// the caller can compute pc+offset without re-deriving it.
func decode(code []byte, pc int) (instruction, error) {
	if pc < 0 || pc >= len(code) {
		return instruction{}, newFault("pc out of range: %d", pc)
	}
	op := Op(code[pc])

	switch op {
	case opNop, opIconstM1, opIconst0, opIconst1, opIconst2, opIconst3, opIconst4, opIconst5,
		opIload0, opIload1, opIload2, opIload3, opAload0, opAload1, opAload2, opAload3,
		opIstore0, opIstore1, opIstore2, opIstore3, opAstore0, opAstore1, opAstore2, opAstore3,
		opIaload, opIastore, opDup,
		opIadd, opIsub, opImul, opIdiv, opIrem, opIneg,
		opIshl, opIshr, opIushr, opIand, opIor, opIxor,
		opIreturn, opAreturn, opReturn, opArraylength:
		return instruction{op: op, pc: pc, next: pc + 1}, nil

	case opBipush:
		b, err := byteAt(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(int8(b)), next: pc + 2}, nil

	case opNewarray:
		// The array-type byte is parsed for encoding fidelity but, per spec
		// §4.2, ignored: only integer arrays are supported at this tier.
		if _, err := byteAt(code, pc+1); err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, next: pc + 2}, nil

	case opIload, opAload, opIstore, opAstore:
		b, err := byteAt(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(b), next: pc + 2}, nil

	case opLdc:
		b, err := byteAt(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(b), next: pc + 2}, nil

	case opSipush:
		v, err := int16At(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(v), next: pc + 3}, nil

	case opIinc:
		idx, err := byteAt(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		c, err := byteAt(code, pc+2)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(idx), arg2: int32(int8(c)), next: pc + 3}, nil

	case opIfeq, opIfne, opIflt, opIfge, opIfgt, opIfle,
		opIfIcmpeq, opIfIcmpne, opIfIcmplt, opIfIcmpge, opIfIcmpgt, opIfIcmple,
		opGoto:
		off, err := int16At(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(off), next: pc + 3}, nil

	case opGetstatic, opInvokevirtual, opInvokestatic:
		idx, err := int16At(code, pc+1)
		if err != nil {
			return instruction{}, err
		}
		return instruction{op: op, pc: pc, arg: int32(idx), next: pc + 3}, nil

	default:
		return instruction{}, newFault("unknown opcode 0x%02X at pc=%d", byte(op), pc)
	}
}

func byteAt(code []byte, i int) (byte, error) {
	if i < 0 || i >= len(code) {
		return 0, newFault("instruction operand out of range at %d", i)
	}
	return code[i], nil
}

// int16At reads a big-endian signed 16-bit immediate, as every multi-byte
// immediate in the code stream is encoded (spec §4.2 "Endianness").
func int16At(code []byte, i int) (int16, error) {
	if i < 0 || i+1 >= len(code) {
		return 0, newFault("instruction operand out of range at %d", i)
	}
	return int16(uint16(code[i])<<8 | uint16(code[i+1])), nil
}
