package interp_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agenthands/teenyjvm/pkg/classfile"
	"github.com/agenthands/teenyjvm/pkg/heap"
	"github.com/agenthands/teenyjvm/pkg/interp"
	"github.com/go-logr/logr"
)

// classBuilder assembles a minimal, well-formed class file for engine
// tests, the same way pkg/classfile's own tests do — these tests live in a
// different package and can't reach classfile's private pool-entry helpers,
// so the builder is duplicated rather than shared.
type classBuilder struct {
	buf  bytes.Buffer
	pool [][]byte
}

func newClassBuilder() *classBuilder {
	b := &classBuilder{}
	b.pool = append(b.pool, nil)
	return b
}

func (b *classBuilder) addUtf8(s string) uint16 {
	entry := append([]byte{1}, u2(uint16(len(s)))...)
	entry = append(entry, []byte(s)...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addInteger(v int32) uint16 {
	entry := append([]byte{3}, u4(uint32(v))...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addClass(nameIndex uint16) uint16 {
	entry := append([]byte{7}, u2(nameIndex)...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addNameAndType(nameIndex, descIndex uint16) uint16 {
	entry := append([]byte{12}, u2(nameIndex)...)
	entry = append(entry, u2(descIndex)...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addMethodref(classIndex, natIndex uint16) uint16 {
	entry := append([]byte{10}, u2(classIndex)...)
	entry = append(entry, u2(natIndex)...)
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

type builtMethod struct {
	nameIndex, descIndex uint16
	maxStack, maxLocals  uint16
	code                 []byte
}

func u2(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }
func u4(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func (b *classBuilder) build(thisClassIndex, codeNameIndex uint16, methods []builtMethod) []byte {
	var out bytes.Buffer
	out.Write(u4(0xCAFEBABE))
	out.Write(u2(0))
	out.Write(u2(52))

	out.Write(u2(uint16(len(b.pool))))
	for i := 1; i < len(b.pool); i++ {
		out.Write(b.pool[i])
	}

	out.Write(u2(0x0021))
	out.Write(u2(thisClassIndex))
	out.Write(u2(0))
	out.Write(u2(0))
	out.Write(u2(0))

	out.Write(u2(uint16(len(methods))))
	for _, m := range methods {
		out.Write(u2(0x0009))
		out.Write(u2(m.nameIndex))
		out.Write(u2(m.descIndex))
		out.Write(u2(1))

		out.Write(u2(codeNameIndex))
		var code bytes.Buffer
		code.Write(u2(m.maxStack))
		code.Write(u2(m.maxLocals))
		code.Write(u4(uint32(len(m.code))))
		code.Write(m.code)
		code.Write(u2(0))
		code.Write(u2(0))
		out.Write(u4(uint32(code.Len())))
		out.Write(code.Bytes())
	}

	out.Write(u2(0))
	return out.Bytes()
}

// buildSingleMethod parses a one-method class whose only method, "main",
// runs code,
// with a fresh engine and heap ready to run it.
func buildSingleMethod(t *testing.T, maxStack, maxLocals uint16, code []byte) (*interp.Engine, *classfile.Method, *bytes.Buffer) {
	t.Helper()
	b := newClassBuilder()
	nameIdx := b.addUtf8("main")
	descIdx := b.addUtf8("([Ljava/lang/String;)V")
	codeIdx := b.addUtf8("Code")
	classNameIdx := b.addUtf8("Test")
	classIdx := b.addClass(classNameIdx)

	data := b.build(classIdx, codeIdx, []builtMethod{
		{nameIndex: nameIdx, descIndex: descIdx, maxStack: maxStack, maxLocals: maxLocals, code: code},
	})

	class, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m, ok := class.FindMethod("main", "([Ljava/lang/String;)V")
	if !ok {
		t.Fatalf("main not found")
	}

	var out bytes.Buffer
	e := interp.New(class, heap.New(logr.Discard()))
	e.Out = &out
	return e, m, &out
}

func runMain(t *testing.T, e *interp.Engine, m *classfile.Method) (int32, bool, error) {
	t.Helper()
	locals := make([]int32, m.MaxLocals)
	return e.Execute(m, locals)
}

func TestE1ConstantsAndAddition(t *testing.T) {
	// iconst_3, iconst_4, iadd, invokevirtual, return
	code := []byte{0x06, 0x07, 0x60, 0xB6, 0x00, 0x00, 0xB1}
	e, m, out := buildSingleMethod(t, 2, 1, code)
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := out.String(); got != "7\n" {
		t.Errorf("expected 7\\n, got %q", got)
	}
}

func TestE2SubtractionOrdering(t *testing.T) {
	// bipush 10, iconst_3, isub, invokevirtual, return
	code := []byte{0x10, 0x0A, 0x06, 0x64, 0xB6, 0x00, 0x00, 0xB1}
	e, m, out := buildSingleMethod(t, 2, 1, code)
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := out.String(); got != "7\n" {
		t.Errorf("expected 7\\n, got %q", got)
	}
}

func TestE3DivisionByZeroTraps(t *testing.T) {
	// iconst_5, iconst_0, idiv
	code := []byte{0x08, 0x03, 0x6C}
	e, m, out := buildSingleMethod(t, 2, 1, code)
	if _, _, err := runMain(t, e, m); err == nil {
		t.Fatalf("expected a fault, got none")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestE4LoopSumsOneToTen(t *testing.T) {
	var code bytes.Buffer
	code.Write([]byte{0x03, 0x3B}) // iconst_0, istore_0  (sum = 0)
	code.Write([]byte{0x04, 0x3C}) // iconst_1, istore_1  (i = 1)
	loopStart := code.Len()
	code.Write([]byte{0x1A, 0x1B, 0x60, 0x3B}) // iload_0, iload_1, iadd, istore_0
	code.Write([]byte{0x84, 0x01, 0x01})       // iinc 1, 1
	code.Write([]byte{0x1B})                   // iload_1
	code.Write([]byte{0x10, 0x0B})             // bipush 11
	ifPos := code.Len()
	code.Write([]byte{0xA1, 0, 0}) // if_icmplt <patched below>
	code.Write([]byte{0x1A})             // iload_0
	code.Write([]byte{0xB6, 0x00, 0x00}) // invokevirtual
	code.Write([]byte{0xB1})             // return

	final := code.Bytes()
	offset := int16(loopStart - ifPos)
	final[ifPos+1] = byte(offset >> 8)
	final[ifPos+2] = byte(offset)

	e, m, outBuf := buildSingleMethod(t, 4, 2, final)
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := outBuf.String(); got != "55\n" {
		t.Errorf("expected 55\\n, got %q", got)
	}
}

func TestE5StaticCallWithTwoParameters(t *testing.T) {
	b := newClassBuilder()
	mainName := b.addUtf8("main")
	mainDesc := b.addUtf8("([Ljava/lang/String;)V")
	mulName := b.addUtf8("mul")
	mulDesc := b.addUtf8("(II)I")
	codeIdx := b.addUtf8("Code")
	classNameIdx := b.addUtf8("Test")
	classIdx := b.addClass(classNameIdx)
	natIdx := b.addNameAndType(mulName, mulDesc)
	methodrefIdx := b.addMethodref(classIdx, natIdx)

	mainCode := []byte{
		0x10, 0x06, // bipush 6
		0x10, 0x07, // bipush 7
		0xB8, byte(methodrefIdx >> 8), byte(methodrefIdx), // invokestatic mul
		0xB6, 0x00, 0x00, // invokevirtual
		0xB1, // return
	}
	mulCode := []byte{0x1A, 0x1B, 0x68, 0xAC} // iload_0, iload_1, imul, ireturn

	data := b.build(classIdx, codeIdx, []builtMethod{
		{nameIndex: mainName, descIndex: mainDesc, maxStack: 2, maxLocals: 1, code: mainCode},
		{nameIndex: mulName, descIndex: mulDesc, maxStack: 2, maxLocals: 2, code: mulCode},
	})

	class, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	main, ok := class.FindMethod("main", "([Ljava/lang/String;)V")
	if !ok {
		t.Fatalf("main not found")
	}

	var out bytes.Buffer
	e := interp.New(class, heap.New(logr.Discard()))
	e.Out = &out
	if _, _, err := e.Execute(main, make([]int32, main.MaxLocals)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := out.String(); got != "42\n" {
		t.Errorf("expected 42\\n, got %q", got)
	}
}

func TestE6ArrayRoundTrip(t *testing.T) {
	var code bytes.Buffer
	code.Write([]byte{0x10, 0x04})       // bipush 4
	code.Write([]byte{0xBC, 0x0A})       // newarray 10 (int, tag ignored)
	code.Write([]byte{0x4B})             // astore_0
	store := func(idx, val byte) {
		code.Write([]byte{0x2A})       // aload_0
		code.Write([]byte{0x03 + idx}) // iconst_<idx>  (idx in [0,3])
		code.Write([]byte{0x10, val})  // bipush val
		code.Write([]byte{0x4F})       // iastore
	}
	store(0, 10)
	store(1, 20)
	store(2, 30)
	store(3, 40)
	code.Write([]byte{0x2A})             // aload_0
	code.Write([]byte{0xBE})             // arraylength
	code.Write([]byte{0xB6, 0x00, 0x00}) // print length
	for i := byte(0); i < 4; i++ {
		code.Write([]byte{0x2A})             // aload_0
		code.Write([]byte{0x03 + i})         // iconst_<i>
		code.Write([]byte{0x2E})             // iaload
		code.Write([]byte{0xB6, 0x00, 0x00}) // print
	}
	code.Write([]byte{0xB1}) // return

	e, m, out := buildSingleMethod(t, 4, 1, code.Bytes())
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := "4\n10\n20\n30\n40\n"
	if got := out.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBoundaryMaxPositiveBranchOffset(t *testing.T) {
	// goto +32767 at pc 0 jumps over a block of return opcodes (any of
	// which would end main without output) onto iconst_0 at pc 32767.
	code := make([]byte, 0x7FFF, 0x7FFF+5)
	code[0], code[1], code[2] = 0xA7, 0x7F, 0xFF // goto +32767
	for i := 3; i < len(code); i++ {
		code[i] = 0xB1 // return (never executed)
	}
	code = append(code, 0x03, 0xB6, 0x00, 0x00, 0xB1) // iconst_0, invokevirtual, return
	e, m, out := buildSingleMethod(t, 2, 1, code)
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := out.String(); got != "0\n" {
		t.Errorf("expected 0\\n, got %q", got)
	}
}

func TestBoundaryMaxNegativeBranchOffsetLoopsOnce(t *testing.T) {
	// A backward if_icmplt at offset -32768, padded with nops so that the
	// offset measured from its own address lands exactly on loopStart,
	// confirming branch displacement isn't computed from the following
	// instruction's address.
	var code2 bytes.Buffer
	code2.Write([]byte{0x03, 0x3B}) // iconst_0, istore_0 : i=0
	loopStart := code2.Len()
	code2.Write([]byte{0x1A})             // iload_0
	code2.Write([]byte{0xB6, 0x00, 0x00}) // print i
	code2.Write([]byte{0x1A, 0x04, 0x60, 0x3B}) // iload_0, iconst_1, iadd, istore_0 (i += 1)
	for code2.Len() < loopStart+32768-3 {
		code2.WriteByte(0x00) // nop
	}
	code2.Write([]byte{0x1A})                   // iload_0
	code2.Write([]byte{0x10, 0x02})             // bipush 2
	ifPos := code2.Len()
	code2.Write([]byte{0xA1, 0, 0}) // if_icmplt loopStart
	code2.Write([]byte{0xB1})       // return

	final := code2.Bytes()
	off := int16(loopStart - ifPos)
	final[ifPos+1] = byte(off >> 8)
	final[ifPos+2] = byte(off)

	e, m, outBuf := buildSingleMethod(t, 3, 1, final)
	if _, _, err := runMain(t, e, m); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := outBuf.String(); got != "0\n1\n" {
		t.Errorf("expected 0\\n1\\n, got %q", got)
	}
}

func TestBoundaryIushrOfNegativeValue(t *testing.T) {
	// Load -1 with ldc from an Integer constant, so the 0xFFFFFFFF operand
	// also passes through the constant pool path.
	b := newClassBuilder()
	mainName := b.addUtf8("main")
	mainDesc := b.addUtf8("([Ljava/lang/String;)V")
	codeIdx := b.addUtf8("Code")
	classNameIdx := b.addUtf8("Test")
	classIdx := b.addClass(classNameIdx)
	negOne := b.addInteger(-1)

	code := []byte{
		0x12, byte(negOne), // ldc -1
		0x04,             // iconst_1
		0x7C,             // iushr
		0xB6, 0x00, 0x00, // invokevirtual
		0xB1,
	}
	data := b.build(classIdx, codeIdx, []builtMethod{
		{nameIndex: mainName, descIndex: mainDesc, maxStack: 2, maxLocals: 1, code: code},
	})
	class, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	main, _ := class.FindMethod("main", "([Ljava/lang/String;)V")

	var out bytes.Buffer
	e := interp.New(class, heap.New(logr.Discard()))
	e.Out = &out
	if _, _, err := e.Execute(main, make([]int32, main.MaxLocals)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// -1 as uint32 is 0xFFFFFFFF; >>1 logically is 0x7FFFFFFF = 2147483647.
	if got := strings.TrimSpace(out.String()); got != "2147483647" {
		t.Errorf("expected 2147483647, got %q", got)
	}
}

func TestBoundaryInegOfIntMinWraps(t *testing.T) {
	b := newClassBuilder()
	mainName := b.addUtf8("main")
	mainDesc := b.addUtf8("([Ljava/lang/String;)V")
	codeIdx := b.addUtf8("Code")
	classNameIdx := b.addUtf8("Test")
	classIdx := b.addClass(classNameIdx)
	intMin := b.addInteger(-2147483648)

	code := []byte{
		0x12, byte(intMin), // ldc INT_MIN
		0x74,             // ineg
		0xB6, 0x00, 0x00, // invokevirtual
		0xB1,
	}
	data := b.build(classIdx, codeIdx, []builtMethod{
		{nameIndex: mainName, descIndex: mainDesc, maxStack: 2, maxLocals: 1, code: code},
	})
	class, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	main, _ := class.FindMethod("main", "([Ljava/lang/String;)V")

	var out bytes.Buffer
	e := interp.New(class, heap.New(logr.Discard()))
	e.Out = &out
	if _, _, err := e.Execute(main, make([]int32, main.MaxLocals)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "-2147483648" {
		t.Errorf("expected -2147483648 (wrapped), got %q", got)
	}
}

func TestBoundaryBipushExtremes(t *testing.T) {
	for _, tc := range []struct {
		b    int8
		want string
	}{
		{-128, "-128\n"},
		{127, "127\n"},
	} {
		code := []byte{0x10, byte(tc.b), 0xB6, 0x00, 0x00, 0xB1}
		e, m, out := buildSingleMethod(t, 2, 1, code)
		if _, _, err := runMain(t, e, m); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if got := out.String(); got != tc.want {
			t.Errorf("bipush %d: expected %q, got %q", tc.b, tc.want, got)
		}
	}
}

func TestBoundarySipushExtremes(t *testing.T) {
	for _, tc := range []struct {
		v    int16
		want string
	}{
		{-32768, "-32768\n"},
		{32767, "32767\n"},
	} {
		hi := byte(uint16(tc.v) >> 8)
		lo := byte(uint16(tc.v))
		code := []byte{0x11, hi, lo, 0xB6, 0x00, 0x00, 0xB1}
		e, m, out := buildSingleMethod(t, 2, 1, code)
		if _, _, err := runMain(t, e, m); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if got := out.String(); got != tc.want {
			t.Errorf("sipush %d: expected %q, got %q", tc.v, tc.want, got)
		}
	}
}

func TestBoundaryEmptyMethodBodyReturnsVoid(t *testing.T) {
	e, m, out := buildSingleMethod(t, 0, 1, []byte{0xB1})
	_, hasValue, err := runMain(t, e, m)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if hasValue {
		t.Errorf("expected void result")
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestGasLimitExhaustion(t *testing.T) {
	var code bytes.Buffer
	code.Write([]byte{0x03, 0x3B}) // iconst_0, istore_0
	loopStart := code.Len()
	code.Write([]byte{0xA7, 0, 0}) // goto loopStart (infinite loop)
	b := code.Bytes()
	off := int16(loopStart - loopStart)
	b[loopStart+1] = byte(off >> 8)
	b[loopStart+2] = byte(off)

	e, m, _ := buildSingleMethod(t, 1, 1, code.Bytes())
	e.GasLimit = 1000
	if _, _, err := runMain(t, e, m); err != interp.ErrGasExhausted {
		t.Fatalf("expected ErrGasExhausted, got %v", err)
	}
}
