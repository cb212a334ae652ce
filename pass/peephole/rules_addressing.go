package peephole

import "github.com/solder-lang/mcbackend/mcir"

// ruleAddrFoldLoadAfterLea folds `lea rTmp, [base+disp]; mov [rTmp], src`
// into `mov [base+disp], src` when rTmp is dead after the store, the
// classic example from §4.7's worked trace.
func ruleAddrFoldLoadAfterLea() Rule {
	return Rule{
		Name:     "addr_fold_lea_store",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadAddrRegMem {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadMemReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(0) == tmp && next.Imm(1) == 0 && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			lea := c.Ref
			store := lea.Next()
			base := lea.Reg(1)
			disp := lea.Ops()[2]
			src := store.Reg(2)
			bits := store.Ops()[3]
			return tryRewrite(c, func() {
				c.Storage.Rewrite(store, mcir.OpcodeLoadMemReg, []mcir.Operand{
					mcir.RegOperand(base), disp, mcir.RegOperand(src), bits,
				})
				c.Storage.Erase(lea)
			})
		},
	}
}

// ruleAddrFoldLoadBeforeRead folds `lea rTmp, [base+disp]; mov dst,
// [rTmp]` into `mov dst, [base+disp]` when rTmp is dead after the read,
// the load-side counterpart of ruleAddrFoldLoadAfterLea.
func ruleAddrFoldLoadBeforeRead() Rule {
	return Rule{
		Name:     "addr_fold_lea_load",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadAddrRegMem {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadRegMem {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(1) == tmp && next.Imm(2) == 0 && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			lea := c.Ref
			load := lea.Next()
			base := lea.Reg(1)
			disp := lea.Ops()[2]
			dst := load.Reg(0)
			bits := load.Ops()[3]
			return tryRewrite(c, func() {
				c.Storage.Rewrite(load, mcir.OpcodeLoadRegMem, []mcir.Operand{
					mcir.RegOperand(dst), mcir.RegOperand(base), disp, bits,
				})
				c.Storage.Erase(lea)
			})
		},
	}
}

// ruleFoldZeroIndexAmc collapses a scaled-indexed memory access whose
// index register was just loaded with the constant 0 into the equivalent
// non-indexed `[base+disp]` form, the zero-index case §4.7 rule 1 names
// explicitly: an all-zero index contributes nothing to the effective
// address regardless of scale.
func ruleFoldZeroIndexAmc() Rule {
	return Rule{
		Name:     "addr_fold_zero_index_amc",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegImm || c.Ref.Imm(1) != 0 {
				return false
			}
			next := c.Ref.Next()
			if next == nil {
				return false
			}
			shape, ok := mcir.GetMemBaseOffsetOperandIndices(next)
			if !ok || shape.IndexIdx < 0 {
				return false
			}
			tmp := c.Ref.Reg(0)
			return next.Reg(shape.IndexIdx) == tmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			zero := c.Ref
			user := zero.Next()
			shape, _ := mcir.GetMemBaseOffsetOperandIndices(user)
			return tryRewrite(c, func() {
				user.SetOperand(shape.IndexIdx, mcir.RegOperand(mcir.NoBaseReg))
				c.Storage.Erase(zero)
			})
		},
	}
}

// ruleFoldCopyAddIntoLoadAddress folds `mov tmp, base; add tmp, disp`
// into `lea tmp, [base+disp]` when tmp and base share a register class and
// the add's flag output is dead, the classic strength-reduction pairing
// §4.7 names as fold_copy_add_into_load_address.
func ruleFoldCopyAddIntoLoadAddress() Rule {
	return Rule{
		Name:     "addr_fold_copy_add_lea",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegReg {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeOpBinaryRegImm {
				return false
			}
			if next.MicroOp(2) != mcir.OpAdd {
				return false
			}
			tmp := c.Ref.Reg(0)
			base := c.Ref.Reg(1)
			if next.Reg(0) != tmp || !tmp.IsSameClass(base) {
				return false
			}
			after := next.Next()
			return after != nil && areFlagsDeadAfterInstruction(after)
		},
		Apply: func(c *Cursor) bool {
			mov := c.Ref
			add := mov.Next()
			tmp := mov.Reg(0)
			base := mov.Reg(1)
			disp := int32(add.Imm(1))
			return tryRewrite(c, func() {
				c.Storage.Rewrite(add, mcir.OpcodeLoadAddrRegMem, []mcir.Operand{
					mcir.RegOperand(tmp), mcir.RegOperand(base), mcir.ImmOperand(uint64(uint32(disp))),
				})
				c.Storage.Erase(mov)
			})
		},
	}
}

// ruleFoldLoadAddrIntoNextMemOffset consumes a `lea tmp, [base+disp]` by
// folding its displacement directly into the first later instruction that
// uses tmp as a [base+off] operand, scanning past any intervening
// instructions that don't touch tmp or base at all rather than requiring
// the consumer to sit immediately next
// (fold_load_addr_into_next_mem_offset).
// Example: lea r11, [rdx+8]; mov [r11], rax -> mov [rdx+8], rax
func ruleFoldLoadAddrIntoNextMemOffset() Rule {
	return Rule{
		Name:     "addr_fold_loadaddr_mem_offset",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadAddrRegMem {
				return false
			}
			tmp := c.Ref.Reg(0)
			base := c.Ref.Reg(1)
			user := scanForAddressFoldUser(c.Ref.Next(), tmp, base)
			if user == nil {
				return false
			}
			shape, ok := mcir.GetMemBaseOffsetOperandIndices(user)
			if !ok || shape.BaseIdx < 0 || user.Reg(shape.BaseIdx) != tmp {
				return false
			}
			return isTempDeadAfter(user, tmp)
		},
		Apply: func(c *Cursor) bool {
			lea := c.Ref
			tmp := lea.Reg(0)
			base := lea.Reg(1)
			extra := lea.Imm(2)
			user := scanForAddressFoldUser(lea.Next(), tmp, base)
			shape, _ := mcir.GetMemBaseOffsetOperandIndices(user)
			folded := user.Imm(shape.DispIdx) + extra
			return tryRewrite(c, func() {
				user.SetOperand(shape.BaseIdx, mcir.RegOperand(base))
				user.SetOperand(shape.DispIdx, mcir.ImmOperand(folded))
				c.Storage.Erase(lea)
			})
		},
	}
}

// ruleFoldLoadAddrAmcIntoNextMemoryAccess folds `lea tmp, [base+index*scale+
// disp]` into the immediately following memory access that reads tmp as its
// base, rewriting it into the equivalent scaled-index (AMC) opcode and
// eliminating the materialized address register entirely
// (fold_load_addr_amc_into_next_memory_access).
// Example: lea r11, [r8+r9*8]; mov rdx, [r11] -> mov rdx, [r8+r9*8]
func ruleFoldLoadAddrAmcIntoNextMemoryAccess() Rule {
	return Rule{
		Name:     "addr_fold_loadaddramc_mem_access",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadAddrAmcRegMem {
				return false
			}
			scale := c.Ref.Imm(3)
			if scale != 1 && scale != 2 && scale != 4 && scale != 8 {
				return false
			}
			next := c.Ref.Next()
			if next == nil {
				return false
			}
			tmp := c.Ref.Reg(0)
			var usesTmp bool
			switch next.Opcode {
			case mcir.OpcodeLoadRegMem:
				usesTmp = next.Reg(1) == tmp
			case mcir.OpcodeLoadMemReg:
				usesTmp = next.Reg(0) == tmp
			case mcir.OpcodeLoadMemImm:
				usesTmp = next.Reg(0) == tmp
			default:
				return false
			}
			return usesTmp && isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			lea := c.Ref
			base := lea.Reg(1)
			index := lea.Reg(2)
			scale := lea.Imm(3)
			leaDisp := int32(lea.Imm(4))
			next := lea.Next()
			switch next.Opcode {
			case mcir.OpcodeLoadRegMem:
				dst := next.Reg(0)
				bits := next.Bits(3)
				disp := int32(next.Imm(2)) + leaDisp
				return tryRewrite(c, func() {
					c.Storage.Rewrite(next, mcir.OpcodeLoadAmcRegMem, []mcir.Operand{
						mcir.RegOperand(dst), mcir.RegOperand(base), mcir.RegOperand(index),
						mcir.ImmOperand(scale), mcir.ImmOperand(uint64(uint32(disp))), mcir.BitsOperand(bits),
					})
					c.Storage.Erase(lea)
				})
			case mcir.OpcodeLoadMemReg:
				src := next.Reg(2)
				bits := next.Bits(3)
				disp := int32(next.Imm(1)) + leaDisp
				return tryRewrite(c, func() {
					c.Storage.Rewrite(next, mcir.OpcodeLoadAmcMemReg, []mcir.Operand{
						mcir.RegOperand(base), mcir.RegOperand(index), mcir.ImmOperand(scale),
						mcir.ImmOperand(uint64(uint32(disp))), mcir.RegOperand(src), mcir.BitsOperand(bits),
					})
					c.Storage.Erase(lea)
				})
			case mcir.OpcodeLoadMemImm:
				imm := next.Imm(2)
				bits := next.Bits(3)
				disp := int32(next.Imm(1)) + leaDisp
				return tryRewrite(c, func() {
					c.Storage.Rewrite(next, mcir.OpcodeLoadAmcMemImm, []mcir.Operand{
						mcir.RegOperand(base), mcir.RegOperand(index), mcir.ImmOperand(scale),
						mcir.ImmOperand(uint64(uint32(disp))), mcir.ImmOperand(imm), mcir.BitsOperand(bits),
					})
					c.Storage.Erase(lea)
				})
			default:
				return false
			}
		},
	}
}

// ruleFoldLoadRegMemIntoNextLoadAddrCopy folds `mov tmp, [base+disp]; lea
// dst, [tmp+0]` into `mov dst, [base+disp]`: a zero-offset lea of a
// register is just a copy, so once that copy is inlined the load can
// target dst directly and tmp never needs to exist
// (fold_loadregmem_into_next_load_addr_copy).
func ruleFoldLoadRegMemIntoNextLoadAddrCopy() Rule {
	return Rule{
		Name:     "addr_fold_loadregmem_into_loadaddr_copy",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegMem {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeLoadAddrRegMem {
				return false
			}
			tmp := c.Ref.Reg(0)
			if next.Reg(1) != tmp || next.Imm(2) != 0 {
				return false
			}
			if c.Ref.Bits(3) != mcir.Bits64 {
				return false
			}
			return isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			load := c.Ref
			lea := load.Next()
			dst := lea.Reg(0)
			base := load.Reg(1)
			disp := load.Ops()[2]
			bits := load.Bits(3)
			return tryRewrite(c, func() {
				c.Storage.Rewrite(lea, mcir.OpcodeLoadRegMem, []mcir.Operand{
					mcir.RegOperand(dst), mcir.RegOperand(base), disp, mcir.BitsOperand(bits),
				})
				c.Storage.Erase(load)
			})
		},
	}
}

// ruleFoldLoadRegMemIntoNextBinaryRegMem folds `mov tmp, [base+disp]; op
// dst, tmp` into a single `op dst, [base+disp]` RMW-style instruction when
// tmp is dead after, for the subset of binary ops the encoder can address
// directly from memory (fold_loadregmem_into_next_binary_regmem). Unlike
// the other addressing folds this builds a genuinely new instruction, so
// it probes that instruction directly rather than going through
// tryRewrite's c.Ref-only probe.
func ruleFoldLoadRegMemIntoNextBinaryRegMem() Rule {
	return Rule{
		Name:     "addr_fold_loadregmem_into_binary_regmem",
		Category: CategoryAddressing,
		Match: func(c *Cursor) bool {
			if c.Ref.Opcode != mcir.OpcodeLoadRegMem {
				return false
			}
			next := c.Ref.Next()
			if next == nil || next.Opcode != mcir.OpcodeOpBinaryRegReg {
				return false
			}
			tmp := c.Ref.Reg(0)
			if next.Reg(1) != tmp || next.Reg(0) == tmp {
				return false
			}
			if c.Ref.Bits(3) != next.Bits(3) {
				return false
			}
			if !mergeableBinaryRegMemOp(next.MicroOp(2)) {
				return false
			}
			return isTempDeadAfter(next, tmp)
		},
		Apply: func(c *Cursor) bool {
			load := c.Ref
			binOp := load.Next()
			dst := binOp.Reg(0)
			base := load.Reg(1)
			disp := load.Ops()[2]
			op := binOp.MicroOp(2)
			bits := binOp.Bits(3)
			newRef := c.Storage.InsertBefore(binOp, mcir.OpcodeOpBinaryRegMem, []mcir.Operand{
				mcir.RegOperand(dst), mcir.RegOperand(base), disp, mcir.OpOperand(op), mcir.BitsOperand(bits),
			})
			if c.Prober != nil && !c.Prober.Probe(newRef) {
				c.Storage.Erase(newRef)
				return false
			}
			c.Storage.Erase(load)
			c.Storage.Erase(binOp)
			return true
		},
	}
}

func mergeableBinaryRegMemOp(op mcir.MicroOp) bool {
	switch op {
	case mcir.OpAdd, mcir.OpSubtract, mcir.OpAnd, mcir.OpOr, mcir.OpXor, mcir.OpMultiplySigned:
		return true
	default:
		return false
	}
}

// scanForAddressFoldUser scans forward from start for the first
// instruction that references reg at all, skipping over instructions that
// don't touch reg unless they are a call or other dataflow barrier (which
// stops the scan). It returns nil if reg or baseReg is redefined before a
// use is found, or if no user turns up before a barrier — the
// scan loop the mem-offset address fold relies on to look past register shuffles the scheduler may have interleaved.
func scanForAddressFoldUser(start mcir.Ref, reg, baseReg mcir.MicroReg) mcir.Ref {
	for ref := start; ref != nil; ref = ref.Next() {
		uses, defs := mcir.CollectUseDef(ref)
		hasUse, hasDef, hasBaseDef := false, false, false
		for _, idx := range uses {
			if ref.Ops()[idx].Kind == mcir.OperandKindReg && ref.Reg(idx) == reg {
				hasUse = true
			}
		}
		for _, idx := range defs {
			if ref.Ops()[idx].Kind != mcir.OperandKindReg {
				continue
			}
			if ref.Reg(idx) == reg {
				hasDef = true
			}
			if ref.Reg(idx) == baseReg {
				hasBaseDef = true
			}
		}
		if hasBaseDef || hasDef {
			return nil
		}
		if !hasUse {
			if ref.IsBarrier() {
				return nil
			}
			continue
		}
		return ref
	}
	return nil
}

func isTempDeadAfter(after mcir.Ref, reg mcir.MicroReg) bool {
	for ref := after.Next(); ref != nil; ref = ref.Next() {
		uses, defs := mcir.CollectUseDef(ref)
		for _, idx := range uses {
			if ref.Ops()[idx].Kind == mcir.OperandKindReg && ref.Reg(idx) == reg {
				return false
			}
		}
		for _, idx := range defs {
			if ref.Ops()[idx].Kind == mcir.OperandKindReg && ref.Reg(idx) == reg {
				return true
			}
		}
		if ref.IsBarrier() {
			return true
		}
	}
	return true
}
