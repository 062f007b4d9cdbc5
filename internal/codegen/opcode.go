package codegen

// WASM instruction opcodes used by the code generator. These are fixed
// by the WASM binary format itself (not a pack library's concern, the
// same way the teacher's internal/wazeroir hand-lists every opcode as a
// byte constant rather than depending on anything external for it).
const (
	opUnreachable = 0x00
	opNop         = 0x01
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opCallIndirect = 0x11

	opDrop   = 0x1a
	opSelect = 0x1b

	opLocalGet  = 0x20
	opLocalSet  = 0x21
	opLocalTee  = 0x22
	opGlobalGet = 0x23
	opGlobalSet = 0x24

	opI32Const = 0x41
	opI64Const = 0x42
	opF32Const = 0x43
	opF64Const = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32LtU = 0x49
	opI32GtS = 0x4a
	opI32GtU = 0x4b
	opI32LeS = 0x4c
	opI32LeU = 0x4d
	opI32GeS = 0x4e
	opI32GeU = 0x4f

	opI64Eq  = 0x51
	opI64Ne  = 0x52
	opI64LtS = 0x53
	opI64GtS = 0x55
	opI64LeS = 0x57
	opI64GeS = 0x59

	opF32Eq = 0x5b
	opF32Ne = 0x5c
	opF32Lt = 0x5d
	opF32Gt = 0x5e
	opF32Le = 0x5f
	opF32Ge = 0x60
	opF64Eq = 0x61
	opF64Ne = 0x62
	opF64Lt = 0x63
	opF64Gt = 0x64
	opF64Le = 0x65
	opF64Ge = 0x66

	opI32Add = 0x6a
	opI32Sub = 0x6b
	opI32Mul = 0x6c
	opI32DivS = 0x6d
	opI32DivU = 0x6e
	opI32RemS = 0x6f
	opI32RemU = 0x70
	opI32And  = 0x71
	opI32Or   = 0x72
	opI32Xor  = 0x73
	opI32Shl  = 0x74
	opI32ShrS = 0x75
	opI32ShrU = 0x76

	opI64Add = 0x7c
	opI64Sub = 0x7d
	opI64Mul = 0x7e
	opI64DivS = 0x7f
	opI64DivU = 0x80
	opI64And  = 0x83
	opI64Or   = 0x84
	opI64Xor  = 0x85
	opI64Shl  = 0x86
	opI64ShrS = 0x87
	opI64ShrU = 0x88

	opF32Neg   = 0x8c
	opF32Trunc = 0x8f
	opF32Add   = 0x92
	opF32Sub = 0x93
	opF32Mul = 0x94
	opF32Div = 0x95

	opF64Neg   = 0x9a
	opF64Trunc = 0x9d
	opF64Add   = 0xa0
	opF64Sub   = 0xa1
	opF64Mul   = 0xa2
	opF64Div   = 0xa3

	opI32WrapI64     = 0xa7
	opI32TruncF32S   = 0xa8
	opI32TruncF64S   = 0xaa
	opI64ExtendI32S  = 0xac
	opI64ExtendI32U  = 0xad
	opF32ConvertI32S = 0xb2
	opF32ConvertI32U = 0xb3
	opF32DemoteF64   = 0xb6
	opF64ConvertI32S = 0xb7
	opF64ConvertI32U = 0xb8
	opF64ConvertI64S = 0xb9
	opF64PromoteF32  = 0xbb

	opRefNull      = 0xd0
	opRefIsNull    = 0xd1
	opRefFunc      = 0xd2
	opRefAsNonNull = 0xd3
	opRefEq        = 0xd5
	opCallRef      = 0x14

	// GC proposal opcodes, all under the 0xfb prefix byte.
	gcPrefix          = 0xfb
	gcStructNew       = 0x00
	gcStructNewDefault = 0x01
	gcStructGet       = 0x02
	gcStructSet       = 0x05
	gcArrayNew        = 0x06
	gcArrayNewDefault = 0x07
	gcArrayNewFixed   = 0x08
	gcArrayGet        = 0x0b
	gcArrayGetU       = 0x0d
	gcArraySet        = 0x0e
	gcArrayLen        = 0x0f
	gcArrayCopy       = 0x11
	gcRefTest         = 0x14
	gcRefCast         = 0x16
	gcRefCastNull     = 0x17
	gcRefI31          = 0x1c

	// heap type tags for ref.null's immediate
	heapTypeAny  = 0x6e
	heapTypeNone = 0x71
)
