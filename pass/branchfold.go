package pass

import "github.com/solder-lang/mcbackend/mcir"

// compareState is the single-slot "most recent flag-setting compare"
// machine branch folding maintains: at most one compare's operands are
// remembered at a time, since UsesCpuFlags/DefinesCpuFlags already
// establish that any flag-defining instruction invalidates whatever came
// before it (§4.5).
type compareState struct {
	valid     bool
	lhs, rhs  uint64
	lhsKnown  bool
	rhsKnown  bool
	bits      mcir.OpBits
}

// runBranchFold resolves a JumpCond whose condition can be proven true or
// false from a preceding constant-operand compare into an unconditional
// jump or a dead instruction (erased outright, since a fallen-through
// branch has no side effect of its own).
func runBranchFold(ctx *Context) {
	storage := ctx.Fn.Storage
	known := make(map[mcir.MicroReg]uint64)
	var cmp compareState

	for ref := storage.Begin(); ref != storage.End(); {
		next := ref.Next()

		if ref.IsBarrier() && ref.Opcode != mcir.OpcodeJumpCond {
			cmp = compareState{}
		}

		switch ref.Opcode {
		case mcir.OpcodeLoadRegImm:
			known[ref.Reg(0)] = ref.Imm(1)
			cmp = compareState{}

		case mcir.OpcodeCmpRegReg:
			a, b := ref.Reg(0), ref.Reg(1)
			lhs, lhsKnown := known[a]
			rhs, rhsKnown := known[b]
			cmp = compareState{valid: true, lhs: lhs, rhs: rhs, lhsKnown: lhsKnown, rhsKnown: rhsKnown, bits: ref.Bits(2)}

		case mcir.OpcodeCmpRegImm:
			a := ref.Reg(0)
			lhs, lhsKnown := known[a]
			cmp = compareState{valid: true, lhs: lhs, rhs: ref.Imm(1), lhsKnown: lhsKnown, rhsKnown: true, bits: ref.Bits(2)}

		case mcir.OpcodeJumpCond:
			cond := ref.Cond(0)
			if cond != mcir.CondUnconditional && cmp.valid && cmp.lhsKnown && cmp.rhsKnown {
				target := ref.Ops()[len(ref.Ops())-1]
				if mcir.EvaluateCondition(cond, cmp.lhs, cmp.rhs, cmp.bits) {
					storage.Rewrite(ref, mcir.OpcodeJumpCond, []mcir.Operand{
						mcir.CondOperand(mcir.CondUnconditional), target,
					})
				} else {
					storage.Erase(ref)
				}
			}
			cmp = compareState{}

		default:
			if ref.Opcode != mcir.OpcodeDebug {
				cmp = compareState{}
			}
			if _, defs := mcir.CollectUseDef(ref); len(defs) > 0 {
				for _, idx := range defs {
					if ref.Ops()[idx].Kind == mcir.OperandKindReg {
						delete(known, ref.Reg(idx))
					}
				}
			}
		}

		ref = next
	}
}
