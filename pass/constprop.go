package pass

import "github.com/solder-lang/mcbackend/mcir"

// runConstProp folds OpBinaryRegReg instructions whose source register
// is a known compile-time constant (the most recent LoadRegImm that
// reaches this point undisturbed) into an OpBinaryRegImm, and then folds
// that into a LoadRegImm when the whole computation is constant.
// Per §4.4, known-constant state is block-local: any barrier
// (MicroInstr.IsBarrier) forgets it rather than trying to merge state
// across control flow, which this single linear pass cannot reason about
// soundly.
func runConstProp(ctx *Context) {
	storage := ctx.Fn.Storage
	known := make(map[mcir.MicroReg]uint64)

	for ref := storage.Begin(); ref != storage.End(); ref = ref.Next() {
		if ref.IsBarrier() {
			clear(known)
		}

		switch ref.Opcode {
		case mcir.OpcodeLoadRegImm:
			known[ref.Reg(0)] = ref.Imm(1)

		case mcir.OpcodeLoadRegReg:
			dst, src := ref.Reg(0), ref.Reg(1)
			if v, ok := known[src]; ok {
				storage.Rewrite(ref, mcir.OpcodeLoadRegImm, []mcir.Operand{
					mcir.RegOperand(dst), mcir.ImmOperand(v), ref.Ops()[2],
				})
				known[dst] = v
				continue
			}
			delete(known, dst)

		case mcir.OpcodeOpBinaryRegReg:
			dst, src := ref.Reg(0), ref.Reg(1)
			op, bits := ref.MicroOp(2), ref.Bits(3)
			dstVal, dstKnown := known[dst]
			srcVal, srcKnown := known[src]
			switch {
			case dstKnown && srcKnown:
				if folded, ok := mcir.FoldBinaryImmediate(dstVal, srcVal, op, bits); ok {
					storage.Rewrite(ref, mcir.OpcodeLoadRegImm, []mcir.Operand{
						mcir.RegOperand(dst), mcir.ImmOperand(folded), mcir.BitsOperand(bits),
					})
					known[dst] = folded
					continue
				}
			case dstKnown && !srcKnown && op.IsCommutative():
				// dst op src == src op dst when op commutes; leave the
				// instruction's shape alone (RegReg still reads src) but
				// there's nothing further to fold without src's value.
			case !dstKnown && srcKnown:
				storage.Rewrite(ref, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
					mcir.RegOperand(dst), mcir.ImmOperand(srcVal), mcir.OpOperand(op), mcir.BitsOperand(bits),
				})
			}
			delete(known, dst)

		case mcir.OpcodeOpBinaryRegImm:
			dst := ref.Reg(0)
			imm := ref.Imm(1)
			op, bits := ref.MicroOp(2), ref.Bits(3)
			if dstVal, ok := known[dst]; ok {
				if folded, ok := mcir.FoldBinaryImmediate(dstVal, imm, op, bits); ok {
					storage.Rewrite(ref, mcir.OpcodeLoadRegImm, []mcir.Operand{
						mcir.RegOperand(dst), mcir.ImmOperand(folded), mcir.BitsOperand(bits),
					})
					known[dst] = folded
					continue
				}
			}
			delete(known, dst)

		default:
			_, defs := mcir.CollectUseDef(ref)
			for _, idx := range defs {
				if ref.Ops()[idx].Kind == mcir.OperandKindReg {
					delete(known, ref.Reg(idx))
				}
			}
		}
	}
}

func clear(m map[mcir.MicroReg]uint64) {
	for k := range m {
		delete(m, k)
	}
}
