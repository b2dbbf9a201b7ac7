// Package opcodes holds the subset of the stack-machine instruction set that
// the rewriter's emitters and remapper need to recognize by name. It is not
// an exhaustive disassembler; the rewrite driver decodes only as much of the
// instruction stream as the analysis and emitter passes pattern-match on, and
// copies the remaining instruction bytes through unchanged.
package opcodes

// Op identifies a single bytecode instruction.
type Op byte

// OperandKind describes how many bytes of immediate operand follow an
// opcode and how those bytes should be interpreted.
type OperandKind int

const (
	NoOperand      OperandKind = iota // no immediate bytes
	ConstPoolU1                       // 1-byte constant-pool index (ldc)
	ConstPoolU2                       // 2-byte constant-pool index
	LocalVarU1                        // 1-byte local variable slot
	BranchS2                          // 2-byte signed branch offset
	BranchS4                          // 4-byte signed branch offset (*_w goto/jsr)
	ImmediateS1                       // 1-byte signed immediate (bipush)
	ImmediateS2                       // 2-byte signed immediate (sipush)
	InvokeInterfaceArgs               // constpool u2 + count u1 + reserved u1
	InvokeDynamicArgs                 // constpool u2 + reserved u2
	IincArgs                          // local index u1 + signed increment s1
	MultiNewArrayArgs                 // constpool u2 + dims u1
	NewArrayArg                       // 1-byte array type code
)

const (
	Nop            Op = 0x00
	AconstNull     Op = 0x01
	IconstM1       Op = 0x02
	Iconst0        Op = 0x03
	Iconst1        Op = 0x04
	Bipush         Op = 0x10
	Sipush         Op = 0x11
	Ldc            Op = 0x12
	LdcW           Op = 0x13
	Ldc2W          Op = 0x14
	Iload          Op = 0x15
	Aload          Op = 0x19
	Istore         Op = 0x36
	Astore         Op = 0x3a
	Iadd           Op = 0x60
	Ladd           Op = 0x61
	Fadd           Op = 0x62
	Dadd           Op = 0x63
	Isub           Op = 0x64
	Imul           Op = 0x68
	Idiv           Op = 0x6c
	Iinc           Op = 0x84
	Goto           Op = 0xa7
	Ifeq           Op = 0x99
	Ifnull         Op = 0xc6
	Ifnonnull      Op = 0xc7
	Ireturn        Op = 0xac
	Lreturn        Op = 0xad
	Freturn        Op = 0xae
	Dreturn        Op = 0xaf
	Areturn        Op = 0xb0
	Return         Op = 0xb1
	GetStatic      Op = 0xb2
	PutStatic      Op = 0xb3
	GetField       Op = 0xb4
	PutField       Op = 0xb5
	InvokeVirtual  Op = 0xb6
	InvokeSpecial  Op = 0xb7
	InvokeStatic   Op = 0xb8
	InvokeInterface Op = 0xb9
	InvokeDynamic  Op = 0xba
	New            Op = 0xbb
	NewArray       Op = 0xbc
	ANewArray      Op = 0xbd
	ArrayLength    Op = 0xbe
	Athrow         Op = 0xbf
	CheckCast      Op = 0xc0
	InstanceOf     Op = 0xc1
	MonitorEnter   Op = 0xc2
	MonitorExit    Op = 0xc3
	Wide           Op = 0xc4
	MultiANewArray Op = 0xc5
	GotoW          Op = 0xc8
	JsrW           Op = 0xc9
	Breakpoint     Op = 0xca
	Impdep1        Op = 0xfe
	Impdep2        Op = 0xff
)

// Info describes the shape of one opcode's operand bytes, which is all the
// rewrite driver needs to skip over (or rewrite) an instruction without a
// full disassembler.
type Info struct {
	Name    string
	Operand OperandKind
}

// Table maps every opcode this package names to its operand shape. Opcodes
// not present here are copied through as single, operand-less bytes by the
// rewrite driver's generic instruction walker; none of the emitters in this
// rewriter need to distinguish them.
var Table = map[Op]Info{
	Nop:             {"nop", NoOperand},
	AconstNull:      {"aconst_null", NoOperand},
	IconstM1:        {"iconst_m1", NoOperand},
	Iconst0:         {"iconst_0", NoOperand},
	Iconst1:         {"iconst_1", NoOperand},
	Bipush:          {"bipush", ImmediateS1},
	Sipush:          {"sipush", ImmediateS2},
	Ldc:             {"ldc", ConstPoolU1},
	LdcW:            {"ldc_w", ConstPoolU2},
	Ldc2W:           {"ldc2_w", ConstPoolU2},
	Iload:           {"iload", LocalVarU1},
	Aload:           {"aload", LocalVarU1},
	Istore:          {"istore", LocalVarU1},
	Astore:          {"astore", LocalVarU1},
	Iadd:            {"iadd", NoOperand},
	Ladd:            {"ladd", NoOperand},
	Fadd:            {"fadd", NoOperand},
	Dadd:            {"dadd", NoOperand},
	Isub:            {"isub", NoOperand},
	Imul:            {"imul", NoOperand},
	Idiv:            {"idiv", NoOperand},
	Iinc:            {"iinc", IincArgs},
	Goto:            {"goto", BranchS2},
	Ifeq:            {"ifeq", BranchS2},
	Ifnull:          {"ifnull", BranchS2},
	Ifnonnull:       {"ifnonnull", BranchS2},
	Ireturn:         {"ireturn", NoOperand},
	Lreturn:         {"lreturn", NoOperand},
	Freturn:         {"freturn", NoOperand},
	Dreturn:         {"dreturn", NoOperand},
	Areturn:         {"areturn", NoOperand},
	Return:          {"return", NoOperand},
	GetStatic:       {"getstatic", ConstPoolU2},
	PutStatic:       {"putstatic", ConstPoolU2},
	GetField:        {"getfield", ConstPoolU2},
	PutField:        {"putfield", ConstPoolU2},
	InvokeVirtual:   {"invokevirtual", ConstPoolU2},
	InvokeSpecial:   {"invokespecial", ConstPoolU2},
	InvokeStatic:    {"invokestatic", ConstPoolU2},
	InvokeInterface: {"invokeinterface", InvokeInterfaceArgs},
	InvokeDynamic:   {"invokedynamic", InvokeDynamicArgs},
	New:             {"new", ConstPoolU2},
	NewArray:        {"newarray", NewArrayArg},
	ANewArray:       {"anewarray", ConstPoolU2},
	ArrayLength:     {"arraylength", NoOperand},
	Athrow:          {"athrow", NoOperand},
	CheckCast:       {"checkcast", ConstPoolU2},
	InstanceOf:      {"instanceof", ConstPoolU2},
	MonitorEnter:    {"monitorenter", NoOperand},
	MonitorExit:     {"monitorexit", NoOperand},
	MultiANewArray:  {"multianewarray", MultiNewArrayArgs},
	GotoW:           {"goto_w", BranchS4},
	JsrW:            {"jsr_w", BranchS4},
	Breakpoint:      {"breakpoint", NoOperand},
	Impdep1:         {"impdep1", NoOperand},
	Impdep2:         {"impdep2", NoOperand},
}

// OperandLength returns how many bytes of immediate operand follow the
// opcode, given the already-known kind. wide indicates the instruction was
// preceded by a Wide prefix, which doubles index widths for a handful of
// opcodes; this rewriter does not currently emit or consume wide-prefixed
// forms, so wide is accepted for completeness but unused.
func OperandLength(kind OperandKind, _ bool) int {
	switch kind {
	case NoOperand:
		return 0
	case ConstPoolU1, LocalVarU1, ImmediateS1, NewArrayArg:
		return 1
	case ConstPoolU2, BranchS2, ImmediateS2:
		return 2
	case BranchS4:
		return 4
	case IincArgs:
		return 2
	case InvokeInterfaceArgs:
		return 4
	case InvokeDynamicArgs:
		return 4
	case MultiNewArrayArgs:
		return 3
	default:
		return 0
	}
}

// IsInvoke reports whether op is one of the five invoke-family opcodes that
// carry a method reference and can be subject to thunking/forbidding.
func IsInvoke(op Op) bool {
	switch op {
	case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface, InvokeDynamic:
		return true
	default:
		return false
	}
}
