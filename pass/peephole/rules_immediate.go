package peephole

import "github.com/solder-lang/mcbackend/mcir"

// ruleFoldLoadImmIntoNextCopy folds `mov tmp, imm; mov dst, tmp` into
// `mov dst, imm` when tmp is dead after the copy, masking the immediate to
// the copy's own width (fold_loadimm_into_next_copy in §4.7).
func ruleFoldLoadImmIntoNextCopy() Rule {
	return Rule{
		Name:     "imm_fold_into_copy",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegImm {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(1) == tmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			loadImm := c.Ref
			copyInst := loadImm.Next()
			dst := copyInst.Reg(0)
			bits := copyInst.Bits(2)
			imm := mcir.NormalizeToOpBits(loadImm.Imm(1), bits)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(copyInst, mcir.OpcodeLoadRegImm, []mcir.Operand{
					mcir.RegOperand(dst), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(loadImm)
			})
		},
	}
}

// ruleFoldLoadImmIntoNextBinary folds `mov tmp, imm; op dst, tmp` into
// `op dst, imm` when tmp is dead after (fold_loadimm_into_next_binary).
func ruleFoldLoadImmIntoNextBinary() Rule {
	return Rule{
		Name:     "imm_fold_into_binary",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegImm {
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
			loadImm := c.Ref
			binOp := loadImm.Next()
			dst := binOp.Reg(0)
			op := binOp.MicroOp(2)
			bits := binOp.Bits(3)
			imm := mcir.NormalizeToOpBits(loadImm.Imm(1), bits)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(binOp, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
					mcir.RegOperand(dst), mcir.ImmOperand(imm), mcir.OpOperand(op), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(loadImm)
			})
		},
	}
}

// ruleFoldLoadImmIntoNextCompare folds `mov tmp, imm; cmp dst, tmp` into
// `cmp dst, imm` when tmp is dead after (fold_loadimm_into_next_compare).
func ruleFoldLoadImmIntoNextCompare() Rule {
	return Rule{
		Name:     "imm_fold_into_compare",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegImm {
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
			loadImm := c.Ref
			cmp := loadImm.Next()
			a := cmp.Reg(0)
			bits := cmp.Bits(2)
			imm := mcir.NormalizeToOpBits(loadImm.Imm(1), bits)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(cmp, mcir.OpcodeCmpRegImm, []mcir.Operand{
					mcir.RegOperand(a), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(loadImm)
			})
		},
	}
}

// ruleFoldLoadImmIntoNextMemStore folds `mov tmp, imm; mov [base+off],
// tmp` into `mov [base+off], imm`, narrowing the immediate to the store's
// width (fold_loadimm_into_next_mem_store).
func ruleFoldLoadImmIntoNextMemStore() Rule {
	return Rule{
		Name:     "imm_fold_into_mem_store",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegImm {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadMemReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(2) == tmp && next.Reg(0) != tmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			loadImm := c.Ref
			store := loadImm.Next()
			base := store.Reg(0)
			disp := store.Ops()[1]
			bits := store.Bits(3)
			imm := mcir.NormalizeToOpBits(loadImm.Imm(1), bits)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(store, mcir.OpcodeLoadMemImm, []mcir.Operand{
					mcir.RegOperand(base), disp, mcir.ImmOperand(imm), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(loadImm)
			})
		},
	}
}

// ruleMergeRegImmArithmetic merges two back-to-back OpBinaryRegImm
// instructions on the same destination and the same commutative-and-
// associative op (add/and/or/xor) into one, folding their immediates at
// compile time. This is merge_regimm from §4.7's termination argument:
// it strictly reduces the instruction count every time it fires.
func ruleMergeRegImmArithmetic() Rule {
	return Rule{
		Name:     "merge_regimm",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeOpBinaryRegImm {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeOpBinaryRegImm {
				return false
			}
			if c.Ref.Reg(0) != next.Reg(0) {
				return false
			}
			op := c.Ref.MicroOp(2)
			return op == next.MicroOp(2) && mergeableImmOp(op)
		},
		Apply: func(c *Cursor) bool {
			first := c.Ref
			second := first.Next()
			dst := first.Reg(0)
			op := first.MicroOp(2)
			bits := first.Bits(3)
			merged, ok := foldMergeImm(first.Imm(1), second.Imm(1), op, bits)
			if !ok {
				return false
			}
			return tryRewrite(c, func() {
				c.Storage.Rewrite(second, mcir.OpcodeOpBinaryRegImm, []mcir.Operand{
					mcir.RegOperand(dst), mcir.ImmOperand(merged), mcir.OpOperand(op), mcir.BitsOperand(bits),
				})
				c.Storage.Erase(first)
			})
		},
	}
}

func mergeableImmOp(op mcir.MicroOp) bool {
	switch op {
	case mcir.OpAdd, mcir.OpAnd, mcir.OpOr, mcir.OpXor:
		return true
	default:
		return false
	}
}

func foldMergeImm(a, b uint64, op mcir.MicroOp, bits mcir.OpBits) (uint64, bool) {
	switch op {
	case mcir.OpAdd:
		return mcir.NormalizeToOpBits(a+b, bits), true
	case mcir.OpAnd:
		return mcir.NormalizeToOpBits(a&b, bits), true
	case mcir.OpOr:
		return mcir.NormalizeToOpBits(a|b, bits), true
	case mcir.OpXor:
		return mcir.NormalizeToOpBits(a^b, bits), true
	default:
		return 0, false
	}
}

// ruleFoldAdjacentMemImm32Stores merges two back-to-back 32-bit immediate
// stores to the same base at adjacent displacements (disp, disp+4) into a
// single 64-bit immediate store, packing the second store's value into the
// high 32 bits (fold_adjacent_memimm32_stores).
// Example: mov dword [rax+8], 1; mov dword [rax+12], 2 -> mov qword [rax+8], 0x200000001
func ruleFoldAdjacentMemImm32Stores() Rule {
	return Rule{
		Name:     "imm_fold_adjacent_mem_stores",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadMemImm || c.Ref.Bits(3) != mcir.Bits32 {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadMemImm || next.Bits(3) != mcir.Bits32 {
				return false
			}
			if c.Ref.Reg(0) != next.Reg(0) {
				return false
			}
			firstDisp := c.Ref.Imm(1)
			nextDisp := next.Imm(1)
			return firstDisp <= ^uint64(0)-4 && firstDisp+4 == nextDisp
		},
		Apply: func(c *Cursor) bool {
			first := c.Ref
			next := first.Next()
			base := first.Reg(0)
			disp := first.Imm(1)
			lo := first.Imm(2) & 0xFFFFFFFF
			hi := next.Imm(2) & 0xFFFFFFFF
			merged := lo | (hi << 32)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(first, mcir.OpcodeLoadMemImm, []mcir.Operand{
					mcir.RegOperand(base), mcir.ImmOperand(disp), mcir.ImmOperand(merged), mcir.BitsOperand(mcir.Bits64),
				})
				c.Storage.Erase(next)
			})
		},
	}
}

// ruleCanonicalizeCmpZero rewrites `cmp reg, 0` into the shorter
// CmpRegZero form (the test reg,reg idiom at the encoder layer), which
// carries a lower non-canonical-form penalty in §4.7's termination
// measure.
func ruleCanonicalizeCmpZero() Rule {
	return Rule{
		Name:     "cmp_zero_canonical",
		Category: CategoryImmediate,
		Match: func(c *Cursor) bool {
			return c.Ref.Opcode == mcir.OpcodeCmpRegImm && c.Ref.Imm(1) == 0
		},
		Apply: func(c *Cursor) bool {
			reg := c.Ref.Reg(0)
			bits := c.Ref.Bits(2)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(c.Ref, mcir.OpcodeCmpRegZero, []mcir.Operand{
					mcir.RegOperand(reg), mcir.BitsOperand(bits),
				})
			})
		},
	}
}
