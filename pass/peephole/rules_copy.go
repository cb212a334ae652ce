package peephole

import "github.com/solder-lang/mcbackend/mcir"

// ruleElideSelfCopy erases a LoadRegReg whose source and destination
// name the same register — a no-op introduced by an earlier pass's
// rewrite, never by the builder directly.
func ruleElideSelfCopy() Rule {
	return Rule{
		Name:     "copy_elide_self",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			return c.Ref.Opcode == mcir.OpcodeLoadRegReg && c.Ref.Reg(0) == c.Ref.Reg(1)
		},
		Apply: func(c *Cursor) bool {
			return tryRewrite(c, func() {
				c.Storage.Erase(c.Ref)
			})
		},
	}
}

// ruleElideDeadCopyBeforeOverwrite erases a LoadRegReg/LoadRegImm whose
// destination is overwritten by the very next instruction without ever
// being read in between, per isCopyDeadAfterInstruction's one-instruction
// lookahead.
func ruleElideDeadCopyBeforeOverwrite() Rule {
	return Rule{
		Name:     "copy_elide_dead",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg && c.Ref.Opcode != mcir.OpcodeLoadRegImm {
				return false
			}
			next := c.Ref.Next()
			if next == nil {
				return false
			}
			dst := c.Ref.Reg(0)
			return isCopyDeadAfterInstruction(next, dst)
		},
		Apply: func(c *Cursor) bool {
			return tryRewrite(c, func() {
				c.Storage.Erase(c.Ref)
			})
		},
	}
}

// ruleForwardCopyIntoNextBinarySource folds `mov tmp, src; op dst, tmp`
// into `op dst, src` when tmp is dead after and dst != tmp, avoiding a
// pointless intermediate register (forward_copy_into_next_binary_source).
func ruleForwardCopyIntoNextBinarySource() Rule {
	return Rule{
		Name:     "copy_forward_into_binary",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeOpBinaryRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(1) == tmp && next.Reg(0) != tmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			binOp := mov.Next()
			src := mov.Reg(1)
			return tryRewrite(c, func() {
				binOp.SetOperand(1, mcir.RegOperand(src))
				c.Storage.Erase(mov)
			})
		},
	}
}

// ruleForwardCopyIntoNextCompareSource folds `mov tmp, src; cmp dst, tmp`
// into `cmp dst, src` under the same dead-tmp condition, the compare-side
// counterpart of ruleForwardCopyIntoNextBinarySource
// (forward_copy_into_next_compare_source).
func ruleForwardCopyIntoNextCompareSource() Rule {
	return Rule{
		Name:     "copy_forward_into_compare",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeCmpRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(1) == tmp && next.Reg(0) != tmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			cmp := mov.Next()
			src := mov.Reg(1)
			return tryRewrite(c, func() {
				cmp.SetOperand(1, mcir.RegOperand(src))
				c.Storage.Erase(mov)
			})
		},
	}
}

// ruleFoldCopyTwinLoadMemReuse folds a copy of a base register followed by
// two back-to-back loads through that copy from the same [base+disp] into
// a single load that doubles as the second load's source, eliminating the
// copy register entirely (fold_copy_twin_load_mem_reuse).
// Example: mov r10, rdx; mov rdx, [r10]; mov r9, [r10] -> mov rdx, [rdx]; mov r9, rdx
func ruleFoldCopyTwinLoadMemReuse() Rule {
	return Rule{
		Name:     "copy_fold_twin_load_mem_reuse",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			copiedBase := c.Ref.Reg(0)
			baseSrc := c.Ref.Reg(1)
			if !copiedBase.IsSameClass(baseSrc) {
				return false
			}
			first := c.Ref.Next()
			if first == nil || first.Opcode != mcir.OpcodeLoadRegMem {
				return false
			}
			second := first.Next()
			if second == nil || second.Opcode != mcir.OpcodeLoadRegMem {
				return false
			}
			if first.Reg(1) != copiedBase || second.Reg(1) != copiedBase {
				return false
			}
			if first.Reg(0) != baseSrc {
				return false
			}
			if first.Reg(0) == second.Reg(0) || !first.Reg(0).IsSameClass(second.Reg(0)) {
				return false
			}
			if first.Bits(3) != second.Bits(3) || first.Imm(2) != second.Imm(2) {
				return false
			}
			return isTempDeadAfter(second, copiedBase)
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			first := mov.Next()
			second := first.Next()
			baseSrc := mov.Reg(1)
			disp := first.Ops()[2]
			bits := first.Bits(3)
			dst2 := second.Reg(0)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(first, mcir.OpcodeLoadRegMem, []mcir.Operand{
					mcir.RegOperand(baseSrc), mcir.RegOperand(baseSrc), disp, mcir.BitsOperand(bits),
				})
				c.Storage.Rewrite(second, mcir.OpcodeLoadRegReg, []mcir.Operand{
					mcir.RegOperand(dst2), mcir.RegOperand(baseSrc), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(mov)
			})
		},
	}
}

// ruleFoldCopyOpCopyBack folds `mov tmp, src; op tmp, other; mov src, tmp`
// into `op src, other` directly, skipping the round trip through tmp once
// the result is copied straight back into src (fold_copy_op_copy_back).
// Example: mov r8, r11; and r8, rdx; mov r11, r8 -> and r11, rdx
func ruleFoldCopyOpCopyBack() Rule {
	return Rule{
		Name:     "copy_fold_op_copy_back",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			src := c.Ref.Reg(1)
			if !tmp.IsSameClass(src) {
				return false
			}
			op := c.Ref.Next()
			if op == nil || op.Opcode != mcir.OpcodeOpBinaryRegReg {
				return false
			}
			copyBack := op.Next()
			if copyBack == nil || copyBack.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			if op.Reg(0) != tmp || op.Reg(1) == src {
				return false
			}
			if copyBack.Reg(0) != src || copyBack.Reg(1) != tmp {
				return false
			}
			bits := c.Ref.Bits(2)
			return op.Bits(3) == bits && copyBack.Bits(2) == bits
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			op := mov.Next()
			copyBack := op.Next()
			src := mov.Reg(1)
			other := op.Reg(1)
			microOp := op.MicroOp(2)
			bits := op.Bits(3)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(op, mcir.OpcodeOpBinaryRegReg, []mcir.Operand{
					mcir.RegOperand(src), mcir.RegOperand(other), mcir.OpOperand(microOp), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(copyBack)
				c.Storage.Erase(mov)
			})
		},
	}
}

// ruleFoldCopyUnaryCopyBack is ruleFoldCopyOpCopyBack's counterpart for a
// unary op in the middle slot (fold_copy_unary_copy_back).
// Example: mov r8, r11; neg r8; mov r11, r8 -> neg r11
func ruleFoldCopyUnaryCopyBack() Rule {
	return Rule{
		Name:     "copy_fold_unary_copy_back",
		Category: CategoryCopy,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			src := c.Ref.Reg(1)
			if !tmp.IsSameClass(src) {
				return false
			}
			unary := c.Ref.Next()
			if unary == nil || unary.Opcode != mcir.OpcodeOpUnaryReg {
				return false
			}
			copyBack := unary.Next()
			if copyBack == nil || copyBack.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			if unary.Reg(0) != tmp {
				return false
			}
			if copyBack.Reg(0) != src || copyBack.Reg(1) != tmp {
				return false
			}
			bits := c.Ref.Bits(2)
			return unary.Bits(2) == bits && copyBack.Bits(2) == bits
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			unary := mov.Next()
			copyBack := unary.Next()
			src := mov.Reg(1)
			microOp := unary.MicroOp(1)
			bits := unary.Bits(2)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(unary, mcir.OpcodeOpUnaryReg, []mcir.Operand{
					mcir.RegOperand(src), mcir.OpOperand(microOp), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(copyBack)
				c.Storage.Erase(mov)
			})
		},
	}
}

// isCopyDeadAfterInstruction reports whether dst is overwritten by next
// without being read by it first — i.e. the value a preceding copy into
// dst produced is provably dead.
func isCopyDeadAfterInstruction(next mcir.Ref, dst mcir.MicroReg) bool {
	uses, defs := mcir.CollectUseDef(next)
	for _, idx := range uses {
		if next.Ops()[idx].Kind == mcir.OperandKindReg && next.Reg(idx) == dst {
			return false
		}
	}
	for _, idx := range defs {
		if next.Ops()[idx].Kind == mcir.OperandKindReg && next.Reg(idx) == dst {
			return true
		}
	}
	return false
}
