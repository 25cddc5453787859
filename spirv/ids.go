package spirv

// idOperands returns the operand indices (1-indexed) that hold IDs for the
// opcodes this package understands. known is false for other opcodes.
func (m *Module) idOperands(inst Inst) (indices []int, known bool) {
	n := inst.WordCount
	all := func(from int) []int {
		out := make([]int, 0, n)
		for i := from; i < n; i++ {
			out = append(out, i)
		}
		return out
	}
	upTo := func(last int) []int {
		if last >= n {
			last = n - 1
		}
		return all(1)[:max(last, 0)]
	}

	switch inst.Opcode {
	case OpName, OpMemberName, OpDecorate, OpMemberDecorate, OpDecorateString,
		OpMemberDecorateString, OpExecutionMode, OpTypeVoid, OpTypeBool, OpTypeFloat,
		OpTypeInt, OpTypeSampler, OpTypeOpaque, OpLabel, OpExtInstImport, OpString,
		OpSelectionMerge, OpBranch, OpReturnValue:
		return upTo(1), true
	case OpEntryPoint:
		_, words, err := m.LiteralString(inst, 3)
		if err != nil {
			return nil, false
		}
		return append([]int{2}, all(3+words)...), true
	case OpTypeVector, OpTypeMatrix, OpTypeImage, OpTypeSampledImage, OpTypeRuntimeArray,
		OpStore, OpCopyMemory, OpLoopMerge, OpFunctionParameter:
		return upTo(2), true
	case OpTypeArray, OpLoad, OpBranchConditional, OpCompositeExtract:
		return upTo(3), true
	case OpTypePointer:
		return []int{1, 3}, true
	case OpConstant, OpConstantTrue, OpConstantFalse, OpConstantNull, OpSpecConstant,
		OpSpecConstantTrue, OpSpecConstantFalse, OpUndef:
		return upTo(2), true
	case OpFunction:
		return []int{1, 2, 4}, true
	case OpVariable:
		if n > 4 {
			return []int{1, 2, 4}, true
		}
		return []int{1, 2}, true
	case OpVectorShuffle, OpCompositeInsert:
		return upTo(4), true
	case OpExtInst:
		return append([]int{1, 2, 3}, all(5)...), true
	case OpTypeStruct, OpTypeFunction, OpConstantComposite, OpSpecConstantComposite,
		OpFunctionCall, OpAccessChain, OpInBoundsAccessChain, OpPtrAccessChain,
		OpCompositeConstruct, OpCopyObject, OpSampledImage, OpImageSampleImplicitLod,
		OpImageRead, OpImageWrite, OpSNegate, OpFNegate, OpIAdd, OpFAdd, OpISub, OpFSub,
		OpIMul, OpFMul, OpFDiv, OpVectorTimesScalar, OpMatrixTimesVector, OpDot, OpAny,
		OpAll, OpLogicalAnd, OpLogicalNot, OpSelect, OpIEqual, OpFOrdEqual, OpFOrdLessThan,
		OpFOrdGreaterThan, OpPhi:
		return all(1), true
	}
	return nil, false
}

// MaxID returns the largest ID defined or referenced by an instruction whose
// operand layout is known.
func (m *Module) MaxID() (uint32, error) {
	var maxID uint32
	err := m.Walk(func(inst Inst) error {
		indices, known := m.idOperands(inst)
		if !known {
			return nil
		}
		for _, i := range indices {
			maxID = max(maxID, m.words[inst.Offset+i])
		}
		return nil
	})
	return maxID, err
}

// CheckBound verifies that the header bound is exactly one greater than the
// largest ID in use.
func (m *Module) CheckBound() error {
	maxID, err := m.MaxID()
	if err != nil {
		return err
	}
	if m.Bound() != maxID+1 {
		return NewError(ErrFormat, "bound %d does not match largest id %d", m.Bound(), maxID)
	}
	return nil
}
