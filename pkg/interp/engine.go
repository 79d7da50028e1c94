// Package interp implements the stack-based bytecode execution engine: the
// operand-stack/local-variable machine, its instruction semantics, method
// invocation with a fresh activation frame per call, and dispatch into the
// integer-array heap.
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/agenthands/teenyjvm/pkg/classfile"
	"github.com/agenthands/teenyjvm/pkg/heap"
	"github.com/go-logr/logr"
)

// ErrGasExhausted is returned when a run's instruction budget is spent
// before the program returned. Spec §5 describes a single-threaded
// cooperative machine with no scheduler or timeout; this ceiling exists
// only to turn a pathological non-terminating program into a bounded,
// reported abort instead of a hang, the same way every bytecode VM this
// repo is grounded on bounds its own dispatch loop with an instruction
// counter.
var ErrGasExhausted = fmt.Errorf("interp: instruction budget exhausted")

// Engine runs methods of a single class against a shared heap.
type Engine struct {
	Class *classfile.Class
	Heap  *heap.Heap

	// Out is where invokevirtual's println(int) writes. Defaults to
	// os.Stdout when left nil.
	Out io.Writer

	// Log receives per-method and, at V(2), per-instruction trace events.
	// Defaults to a discarding logger so embedding this package never
	// incurs logging overhead unless a caller asks for it.
	Log logr.Logger

	// GasLimit bounds the total number of instructions a single top-level
	// Execute call may dispatch, across all recursive invokestatic calls.
	// Zero means unbounded.
	GasLimit int

	gasUsed int
}

// New builds an Engine ready to run methods of class against heap h.
func New(class *classfile.Class, h *heap.Heap) *Engine {
	return &Engine{Class: class, Heap: h}
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Execute runs method with the given already-populated locals (parameters
// in slots [0, param_count), zero elsewhere) and returns its result: either
// void (hasValue is false) or a single int32.
//
// Execution invariant violations are recovered here, at the single
// top-level call, and returned as an error — every recursive invokestatic
// call below this one shares the same recover boundary, since they call
// execMethod directly rather than re-entering Execute.
func (e *Engine) Execute(method *classfile.Method, locals []int32) (result int32, hasValue bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case *Fault:
				err = v
			case error:
				if v == ErrGasExhausted {
					err = v
					return
				}
				panic(r)
			default:
				panic(r)
			}
		}
	}()
	e.gasUsed = 0
	result, hasValue = e.execMethod(method, locals)
	return result, hasValue, nil
}

func (e *Engine) execMethod(method *classfile.Method, locals []int32) (int32, bool) {
	e.Log.V(1).Info("invoke", "method", method.Name, "descriptor", method.Descriptor, "params", method.ParamCount())

	f := newFrame(locals, method.MaxStack)
	pc := 0

	for pc < len(method.Code) {
		e.gasUsed++
		if e.GasLimit > 0 && e.gasUsed > e.GasLimit {
			panic(ErrGasExhausted)
		}

		instr, err := decode(method.Code, pc)
		if err != nil {
			panic(err)
		}
		e.Log.V(2).Info("dispatch", "pc", instr.pc, "op", fmt.Sprintf("0x%02X", byte(instr.op)))

		pc = e.dispatch(f, method, instr)
		if pc < 0 && (instr.op == opIreturn || instr.op == opAreturn || instr.op == opReturn) {
			// A return opcode signals termination by encoding its result
			// in f before setting pc negative; retValue/hasValue are
			// stashed on the frame rather than threaded through dispatch's
			// return value so the switch below stays a plain pc producer.
			return f.retValue, f.hasValue
		}
		if pc != instr.next && (pc < 0 || pc >= len(method.Code)) {
			raise("branch target out of range: %d (code length %d)", pc, len(method.Code))
		}
	}
	return 0, false
}

// dispatch executes the single instruction instr against frame f and
// returns the pc of the next instruction to run, or -1 if the method is
// returning (with f.retValue/f.hasValue already set).
func (e *Engine) dispatch(f *frame, method *classfile.Method, instr instruction) int {
	switch instr.op {
	case opNop:
		return instr.next

	case opIconstM1:
		f.push(-1)
	case opIconst0:
		f.push(0)
	case opIconst1:
		f.push(1)
	case opIconst2:
		f.push(2)
	case opIconst3:
		f.push(3)
	case opIconst4:
		f.push(4)
	case opIconst5:
		f.push(5)

	case opBipush, opSipush:
		f.push(instr.arg)

	case opLdc:
		v, ok := e.Class.ConstantInt(uint16(instr.arg))
		if !ok {
			raise("ldc: constant pool index %d is not an integer constant", instr.arg)
		}
		f.push(v)

	case opIload, opAload:
		f.push(f.local(instr.arg))
	case opIload0, opAload0:
		f.push(f.local(0))
	case opIload1, opAload1:
		f.push(f.local(1))
	case opIload2, opAload2:
		f.push(f.local(2))
	case opIload3, opAload3:
		f.push(f.local(3))

	case opIstore, opAstore:
		f.setLocal(instr.arg, f.pop())
	case opIstore0, opAstore0:
		f.setLocal(0, f.pop())
	case opIstore1, opAstore1:
		f.setLocal(1, f.pop())
	case opIstore2, opAstore2:
		f.setLocal(2, f.pop())
	case opIstore3, opAstore3:
		f.setLocal(3, f.pop())

	case opIinc:
		f.setLocal(instr.arg, f.local(instr.arg)+instr.arg2)

	case opDup:
		v := f.pop()
		f.push(v)
		f.push(v)

	case opIadd:
		b, a := f.pop(), f.pop()
		f.push(a + b)
	case opIsub:
		b, a := f.pop(), f.pop()
		f.push(a - b)
	case opImul:
		b, a := f.pop(), f.pop()
		f.push(a * b)
	case opIdiv:
		b, a := f.pop(), f.pop()
		if b == 0 {
			raise("division by zero")
		}
		f.push(a / b)
	case opIrem:
		b, a := f.pop(), f.pop()
		if b == 0 {
			raise("division by zero")
		}
		f.push(a % b)
	case opIneg:
		f.push(-f.pop())

	case opIshl:
		b, a := f.pop(), f.pop()
		if b < 0 {
			raise("negative shift amount: %d", b)
		}
		f.push(a << uint32(b&0x1F))
	case opIshr:
		b, a := f.pop(), f.pop()
		if b < 0 {
			raise("negative shift amount: %d", b)
		}
		f.push(a >> uint32(b&0x1F))
	case opIushr:
		b, a := f.pop(), f.pop()
		if b < 0 {
			raise("negative shift amount: %d", b)
		}
		f.push(int32(uint32(a) >> uint32(b&0x1F)))
	case opIand:
		b, a := f.pop(), f.pop()
		f.push(a & b)
	case opIor:
		b, a := f.pop(), f.pop()
		f.push(a | b)
	case opIxor:
		b, a := f.pop(), f.pop()
		f.push(a ^ b)

	case opIfeq:
		return e.branch(f, instr, f.pop() == 0)
	case opIfne:
		return e.branch(f, instr, f.pop() != 0)
	case opIflt:
		return e.branch(f, instr, f.pop() < 0)
	case opIfge:
		return e.branch(f, instr, f.pop() >= 0)
	case opIfgt:
		return e.branch(f, instr, f.pop() > 0)
	case opIfle:
		return e.branch(f, instr, f.pop() <= 0)

	case opIfIcmpeq:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a == b)
	case opIfIcmpne:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a != b)
	case opIfIcmplt:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a < b)
	case opIfIcmpge:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a >= b)
	case opIfIcmpgt:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a > b)
	case opIfIcmple:
		b, a := f.pop(), f.pop()
		return e.branch(f, instr, a <= b)

	case opGoto:
		return instr.pc + int(instr.arg)

	case opIreturn, opAreturn:
		f.retValue, f.hasValue = f.pop(), true
		return -1
	case opReturn:
		f.hasValue = false
		return -1

	case opGetstatic:
		// Only used in compiled programs to load System.out before
		// println; nothing to resolve at this tier.
		return instr.next

	case opInvokevirtual:
		fmt.Fprintln(e.out(), f.pop())
		return instr.next

	case opInvokestatic:
		e.invokeStatic(f, instr)
		return instr.next

	case opNewarray:
		n := f.pop()
		if n < 0 {
			raise("newarray: negative length %d", n)
		}
		arr := make([]int32, n+1)
		arr[0] = n
		f.push(e.Heap.Allocate(arr))
		return instr.next

	case opArraylength:
		ref := f.pop()
		f.push(e.Heap.Lookup(ref)[0])
		return instr.next

	case opIastore:
		v, i, ref := f.pop(), f.pop(), f.pop()
		arr := e.Heap.Lookup(ref)
		checkIndex(arr, i)
		arr[i+1] = v
		return instr.next

	case opIaload:
		i, ref := f.pop(), f.pop()
		arr := e.Heap.Lookup(ref)
		checkIndex(arr, i)
		f.push(arr[i+1])
		return instr.next

	default:
		raise("unhandled opcode 0x%02X", byte(instr.op))
	}

	return instr.next
}

func (e *Engine) branch(f *frame, instr instruction, taken bool) int {
	if taken {
		return instr.pc + int(instr.arg)
	}
	return instr.next
}

func checkIndex(arr []int32, i int32) {
	if i < 0 || i >= arr[0] {
		raise("array index out of range: %d (length %d)", i, arr[0])
	}
}

// invokeStatic resolves idx to a method of the same class, marshals
// arguments off the caller's stack into a fresh callee frame, and
// recurses. Spec §4.2/§9: the value popped last (the deepest of the
// parameters) becomes callee locals[0]; the topmost becomes
// locals[param_count-1].
func (e *Engine) invokeStatic(f *frame, instr instruction) {
	callee, ok := e.Class.FindMethodFromIndex(uint16(instr.arg))
	if !ok {
		raise("invokestatic: constant pool index %d is not a resolvable method", instr.arg)
	}

	p := callee.ParamCount()
	args := make([]int32, p)
	for i := p - 1; i >= 0; i-- {
		args[i] = f.pop()
	}

	locals := make([]int32, callee.MaxLocals)
	copy(locals, args)

	ret, hasValue := e.execMethod(callee, locals)
	if hasValue {
		f.push(ret)
	}
}
