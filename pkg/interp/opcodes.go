package interp

// Op is a single bytecode opcode, using the real JVM opcode values so this
// interpreter runs unmodified output from a real javac for the subset of
// the language it supports.
type Op byte

const (
	opNop Op = 0x00

	opIconstM1 Op = 0x02
	opIconst0  Op = 0x03
	opIconst1  Op = 0x04
	opIconst2  Op = 0x05
	opIconst3  Op = 0x06
	opIconst4  Op = 0x07
	opIconst5  Op = 0x08

	opBipush Op = 0x10
	opSipush Op = 0x11
	opLdc    Op = 0x12

	opIload  Op = 0x15
	opAload  Op = 0x19
	opIload0 Op = 0x1A
	opIload1 Op = 0x1B
	opIload2 Op = 0x1C
	opIload3 Op = 0x1D
	opAload0 Op = 0x2A
	opAload1 Op = 0x2B
	opAload2 Op = 0x2C
	opAload3 Op = 0x2D

	opIaload Op = 0x2E

	opIstore  Op = 0x36
	opAstore  Op = 0x3A
	opIstore0 Op = 0x3B
	opIstore1 Op = 0x3C
	opIstore2 Op = 0x3D
	opIstore3 Op = 0x3E
	opAstore0 Op = 0x4B
	opAstore1 Op = 0x4C
	opAstore2 Op = 0x4D
	opAstore3 Op = 0x4E

	opIastore Op = 0x4F

	opDup Op = 0x59

	opIadd Op = 0x60
	opIsub Op = 0x64
	opImul Op = 0x68
	opIdiv Op = 0x6C
	opIrem Op = 0x70
	opIneg Op = 0x74

	opIshl  Op = 0x78
	opIshr  Op = 0x7A
	opIushr Op = 0x7C
	opIand  Op = 0x7E
	opIor   Op = 0x80
	opIxor  Op = 0x82

	opIinc Op = 0x84

	opIfeq     Op = 0x99
	opIfne     Op = 0x9A
	opIflt     Op = 0x9B
	opIfge     Op = 0x9C
	opIfgt     Op = 0x9D
	opIfle     Op = 0x9E
	opIfIcmpeq Op = 0x9F
	opIfIcmpne Op = 0xA0
	opIfIcmplt Op = 0xA1
	opIfIcmpge Op = 0xA2
	opIfIcmpgt Op = 0xA3
	opIfIcmple Op = 0xA4

	opGoto Op = 0xA7

	opIreturn Op = 0xAC
	opAreturn Op = 0xB0
	opReturn  Op = 0xB1

	opGetstatic     Op = 0xB2
	opInvokevirtual Op = 0xB6
	opInvokestatic  Op = 0xB8

	opNewarray    Op = 0xBC
	opArraylength Op = 0xBE
)
