package cfg

import (
	"fmt"
	"sort"
	"time"

	"github.com/standardbeagle/bintriage/internal/addr"
)

// Arch names an instruction-set family for terminator classification
// and disassembler-backend selection. Only the families the
// classification table and the pack's reference material cover are
// named; anything else is ArchUnknown, for which no mnemonic is
// classified as a terminator, so decoding runs linearly until the
// backend fails or a budget is crossed.
type Arch string

const (
	ArchUnknown Arch = "unknown"
	ArchX86     Arch = "x86"
	ArchX86_64  Arch = "x86_64"
	ArchARM     Arch = "arm"
	ArchARM64   Arch = "arm64"
	ArchMIPS    Arch = "mips"
	ArchMIPS64  Arch = "mips64"
	ArchRISCV   Arch = "riscv"
	ArchRISCV64 Arch = "riscv64"
	ArchPPC     Arch = "ppc"
	ArchPPC64   Arch = "ppc64"
)

// Operand is one instruction operand; only the immediate form is
// modeled, since branch/call target resolution is the only thing the
// worklist algorithm needs from an operand (spec §4.5 step 3-4).
type Operand struct {
	Immediate *int64
}

// Instruction is one decoded instruction: its mnemonic (used for
// terminator classification) and byte length (used to compute the
// next address), plus whatever operands the backend recovered.
type Instruction struct {
	Mnemonic string
	Length   int
	Operands []Operand
}

// immediateTarget returns the first immediate operand's value, if any
// (spec §4.5's heuristic: "use first immediate operand if present").
func immediateTarget(ins Instruction) (uint64, bool) {
	for _, op := range ins.Operands {
		if op.Immediate != nil {
			return uint64(*op.Immediate), true
		}
	}
	return 0, false
}

// Backend decodes a single instruction at address from the bytes
// starting there. Implementations must be pure functions of (bytes,
// address) (spec §6's collaborator-interface contract) — the core
// calls a Backend exactly once per decoded instruction. No concrete
// backend ships with this package: wiring a real x86/ARM/etc. decoder
// is the embedding application's responsibility, selected through
// Registry.
type Backend interface {
	DisassembleInstruction(address addr.Address, data []byte) (Instruction, error)
}

// Registry maps an Arch to a disassembler Backend. Endianness is not
// part of the key: one Backend is registered per Arch.
type Registry struct {
	backends map[Arch]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[Arch]Backend)}
}

// Register installs backend for arch, overwriting any prior entry.
func (r *Registry) Register(arch Arch, backend Backend) {
	r.backends[arch] = backend
}

// ForArch returns the backend registered for arch, or false if none
// was registered — the zero-backend case the worklist treats as "no
// functions discoverable for this architecture."
func (r *Registry) ForArch(arch Arch) (Backend, bool) {
	b, ok := r.backends[arch]
	return b, ok
}

// ExecRegion is one executable address range: a PE section with the
// execute characteristic, or an ELF PT_LOAD segment with PF_X (spec
// §4.5's input contract). End is exclusive.
type ExecRegion struct {
	Start uint64
	End   uint64
}

func inExecRegions(regions []ExecRegion, va uint64) bool {
	for _, r := range regions {
		if va >= r.Start && va < r.End {
			return true
		}
	}
	return false
}

// classifyTerminator classifies mnemonic into (isBranch, isCall,
// isReturn) for arch, per the small per-architecture-family table of
// spec §4.5. Unknown mnemonics are non-terminating.
func classifyTerminator(mnemonic string, arch Arch) (isBranch, isCall, isReturn bool) {
	m := mnemonic
	switch arch {
	case ArchX86, ArchX86_64:
		switch {
		case m == "ret" || m == "retq":
			return false, false, true
		case m == "call":
			return false, true, false
		case len(m) > 0 && m[0] == 'j':
			return true, false, false
		}
	case ArchARM, ArchARM64:
		switch {
		case m == "ret":
			return false, false, true
		case m == "bl" || m == "blr":
			return false, true, false
		case m == "b" || m == "cbz" || m == "cbnz" || m == "tbz" || m == "tbnz" || hasPrefix(m, "b."):
			return true, false, false
		}
	case ArchMIPS, ArchMIPS64:
		switch {
		case m == "jal":
			return false, true, false
		case m == "jr" || m == "j" || hasPrefix(m, "b"):
			return true, false, false
		}
	case ArchRISCV, ArchRISCV64:
		switch {
		case m == "jal" || m == "jalr":
			return false, true, false
		case hasPrefix(m, "b"):
			return true, false, false
		}
	case ArchPPC, ArchPPC64:
		switch {
		case m == "bl":
			return false, true, false
		case hasPrefix(m, "b"):
			return true, false, false
		}
	}
	return false, false, false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// blockInfo accumulates one discovered basic block during the worklist
// pass: its end address (exclusive) and its decoded instruction count.
type blockInfo struct {
	end    uint64
	instrs uint32
}

// callSite is a recorded (caller basic-block start, callee VA) pair
// from spec §4.5 step 4 — calls do not add a CFG successor, only a
// side entry consumed by call-graph construction.
type callSite struct {
	callerBlockStart uint64
	calleeVA         uint64
}

// DiscoverFunction runs the worklist algorithm of spec §4.5 starting at
// entry, within regions, bounded by budgets, using backend to decode
// instructions. It returns the discovered Function and the call sites
// recorded along the way, or ok=false if entry does not fall in any
// executable region.
func DiscoverFunction(data []byte, arch Arch, entry addr.Address, regions []ExecRegion, backend Backend, budgets Budgets, vaToFileOffset func(uint64) (int, bool)) (fn *Function, calls []callSite, ok bool) {
	if !inExecRegions(regions, entry.Value) {
		return nil, nil, false
	}

	start := time.Now()
	timedOut := func() bool {
		return time.Since(start).Milliseconds() > budgets.TimeoutMS
	}

	queue := []uint64{entry.Value}
	seen := map[uint64]bool{entry.Value: true}
	blocks := make(map[uint64]blockInfo)
	type rawEdge struct {
		from, to uint64
		kind     EdgeKind
	}
	var rawEdges []rawEdge

	decoded := 0

	for len(queue) > 0 && !timedOut() {
		startVA := queue[0]
		queue = queue[1:]
		if _, already := blocks[startVA]; already {
			continue
		}
		if len(blocks) >= budgets.MaxBlocks {
			break
		}

		curVA := startVA
		var instrs uint32

	blockLoop:
		for {
			if decoded >= budgets.MaxInstructions || timedOut() {
				break blockLoop
			}
			fileOff, okOff := vaToFileOffset(curVA)
			if !okOff || fileOff >= len(data) {
				break blockLoop
			}
			addrVal, err := addr.New(addr.VA, curVA, entry.Bits)
			if err != nil {
				break blockLoop
			}
			ins, err := backend.DisassembleInstruction(addrVal, data[fileOff:])
			if err != nil || ins.Length <= 0 {
				break blockLoop
			}
			decoded++
			instrs++
			endVA := curVA + uint64(ins.Length)
			isBranch, isCall, isReturn := classifyTerminator(ins.Mnemonic, arch)

			switch {
			case isCall:
				if tgt, hasTgt := immediateTarget(ins); hasTgt {
					calls = append(calls, callSite{callerBlockStart: startVA, calleeVA: tgt})
				}
				curVA = endVA
				continue blockLoop
			case isBranch:
				unconditional := ins.Mnemonic == "jmp" || ins.Mnemonic == "b"
				if tgt, hasTgt := immediateTarget(ins); hasTgt {
					if inExecRegions(regions, tgt) && !seen[tgt] {
						seen[tgt] = true
						queue = append(queue, tgt)
					}
					rawEdges = append(rawEdges, rawEdge{startVA, tgt, Branch})
				}
				if !unconditional {
					if inExecRegions(regions, endVA) && !seen[endVA] {
						seen[endVA] = true
						queue = append(queue, endVA)
					}
					rawEdges = append(rawEdges, rawEdge{startVA, endVA, Fallthrough})
				}
				blocks[startVA] = blockInfo{end: endVA, instrs: instrs}
				break blockLoop
			case isReturn:
				blocks[startVA] = blockInfo{end: endVA, instrs: instrs}
				break blockLoop
			}
			curVA = endVA
		}
		if _, exists := blocks[startVA]; !exists {
			blocks[startVA] = blockInfo{end: curVA, instrs: instrs}
		}
	}

	fn = NewFunction(fmt.Sprintf("sub_%x", entry.Value), entry, FunctionNormal)

	var starts []uint64
	for va := range blocks {
		starts = append(starts, va)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	bbID := make(map[uint64]string, len(starts))
	for _, va := range starts {
		bbID[va] = fmt.Sprintf("bb_%x", va)
	}
	for _, va := range starts {
		info := blocks[va]
		startAddr, _ := addr.New(addr.VA, va, entry.Bits)
		endAddr, _ := addr.New(addr.VA, info.end, entry.Bits)
		fn.AddBasicBlock(BasicBlock{
			ID:               bbID[va],
			Start:            startAddr,
			End:              endAddr,
			InstructionCount: info.instrs,
		})
	}

	succs := make(map[string][]string)
	preds := make(map[string][]string)
	for _, re := range rawEdges {
		fromID, okFrom := bbID[re.from]
		toID, okTo := bbID[re.to]
		if !okFrom || !okTo {
			continue
		}
		succs[fromID] = append(succs[fromID], toID)
		preds[toID] = append(preds[toID], fromID)
		if re.kind == Fallthrough || re.kind == Branch {
			fn.Graph.AddSimpleEdge(fromID, toID, re.kind)
		}
	}
	for i := range fn.BasicBlocks {
		id := fn.BasicBlocks[i].ID
		fn.BasicBlocks[i].SuccessorIDs = sortedUnique(succs[id])
		fn.BasicBlocks[i].PredecessorIDs = sortedUnique(preds[id])
		fn.BasicBlocks[i].RelationshipsKnown = true
	}

	return fn, calls, true
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// AnalyzeFunctions discovers functions seeded by entry and seeds (in
// that order, duplicates removed, per spec §4.5's seed-ordering rule),
// up to budgets.MaxFunctions, and builds a name-keyed CallGraph over
// the results. stubNames resolves a call target VA to a PLT/IAT stub
// name (already formatted, e.g. "CreateFileA" or "printf@plt") when the
// target is not one of the discovered functions' own entry points.
func AnalyzeFunctions(data []byte, arch Arch, entry addr.Address, seeds []addr.Address, regions []ExecRegion, backend Backend, budgets Budgets, vaToFileOffset func(uint64) (int, bool), stubNames map[uint64]string) ([]*Function, *CallGraph) {
	cg := NewCallGraph()
	if backend == nil || len(regions) == 0 {
		return nil, cg
	}

	ordered := []addr.Address{entry}
	seenVA := map[uint64]bool{entry.Value: true}
	for _, s := range seeds {
		if !seenVA[s.Value] {
			seenVA[s.Value] = true
			ordered = append(ordered, s)
		}
	}

	maxFns := budgets.MaxFunctions
	if maxFns < 1 {
		maxFns = 1
	}
	if len(ordered) > maxFns {
		ordered = ordered[:maxFns]
	}

	var functions []*Function
	type pendingCall struct {
		callerName string
		calleeVA   uint64
	}
	var pending []pendingCall

	for _, seed := range ordered {
		fn, calls, ok := DiscoverFunction(data, arch, seed, regions, backend, budgets, vaToFileOffset)
		if !ok {
			continue
		}
		cg.AddNode(fn.Name)
		functions = append(functions, fn)
		for _, c := range calls {
			pending = append(pending, pendingCall{callerName: fn.Name, calleeVA: c.calleeVA})
		}
	}

	nameByVA := make(map[uint64]string, len(functions))
	for _, fn := range functions {
		nameByVA[fn.EntryPoint.Value] = fn.Name
	}

	for _, c := range pending {
		callee, known := nameByVA[c.calleeVA]
		kind := CallDirect
		if !known {
			if stub, okStub := stubNames[c.calleeVA]; okStub {
				callee = stub
				kind = CallPLT
			} else {
				callee = fmt.Sprintf("sub_%x", c.calleeVA)
			}
		}
		cg.AddNode(callee)
		cg.AddEdge(CallGraphEdge{Caller: c.callerName, Callee: callee, Kind: kind})
	}

	return functions, cg
}
