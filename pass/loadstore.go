package pass

import "github.com/solder-lang/mcbackend/mcir"

// slotKey identifies a [base+disp] memory location by identity; two
// operands alias only if they name the same base register and carry the
// same literal displacement, so a location whose base might have been
// redefined through an unrelated pointer is never merged with one
// computed differently, even if the two happen to coincide at runtime.
type slotKey struct {
	base mcir.MicroReg
	disp uint64
}

// runLoadStoreForward eliminates a LoadRegMem that reads back a value a
// preceding LoadMemReg just wrote to the identical [base+disp] location,
// replacing the load with a register copy (§4.6). Stores are only
// recorded as forwarding sources; no store is ever removed, even one that
// is overwritten before it is read. Forwarding is invalidated for a location
// whenever its base register is redefined, or whenever any call or
// indirect-addressing instruction the pass can't prove disjoint from it
// executes.
func runLoadStoreForward(ctx *Context) {
	storage := ctx.Fn.Storage
	lastStore := make(map[slotKey]mcir.MicroReg)

	for ref := storage.Begin(); ref != storage.End(); {
		next := ref.Next()

		shape, isMem := mcir.GetMemBaseOffsetOperandIndices(ref)
		if isMem && shape.IndexIdx == -1 && ref.Ops()[shape.BaseIdx].Kind == mcir.OperandKindReg &&
			ref.Ops()[shape.DispIdx].Kind == mcir.OperandKindImm {
			base := ref.Reg(shape.BaseIdx)
			disp := ref.Imm(shape.DispIdx)
			key := slotKey{base: base, disp: disp}

			switch ref.Opcode {
			case mcir.OpcodeLoadRegMem:
				if srcVal, ok := lastStore[key]; ok {
					dst := ref.Reg(0)
					bits := ref.Ops()[len(ref.Ops())-1]
					storage.Rewrite(ref, mcir.OpcodeLoadRegReg, []mcir.Operand{
						mcir.RegOperand(dst), mcir.RegOperand(srcVal), bits,
					})
				}
				ref = next
				continue

			case mcir.OpcodeLoadMemReg:
				src := ref.Reg(2)
				lastStore[key] = src
				if ref.IsCall() {
					clearSlots(lastStore)
				}
				ref = next
				continue
			}
		}

		if ref.IsCall() || ref.Opcode == mcir.OpcodeLabel || (isMem && shape.IndexIdx != -1) {
			clearSlots(lastStore)
		}
		if !isMem {
			if _, defs := mcir.CollectUseDef(ref); len(defs) > 0 {
				for _, idx := range defs {
					if ref.Ops()[idx].Kind != mcir.OperandKindReg {
						continue
					}
					redefined := ref.Reg(idx)
					for k := range lastStore {
						if k.base == redefined {
							delete(lastStore, k)
						}
					}
				}
			}
		}

		ref = next
	}
}

func clearSlots(m map[slotKey]mcir.MicroReg) {
	for k := range m {
		delete(m, k)
	}
}
