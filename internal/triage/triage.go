// Package triage implements the sniff -> parse -> entropy -> packer ->
// overlay -> fuse -> emit pipeline described in spec §4.3: the single
// entry point that turns an opened input into a ranked TriageArtifact.
package triage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/standardbeagle/bintriage/internal/artifact"
	"github.com/standardbeagle/bintriage/internal/bconfig"
	"github.com/standardbeagle/bintriage/internal/entropy"
	"github.com/standardbeagle/bintriage/internal/format/bytecode"
	"github.com/standardbeagle/bintriage/internal/format/common"
	"github.com/standardbeagle/bintriage/internal/format/elf"
	"github.com/standardbeagle/bintriage/internal/format/macho"
	"github.com/standardbeagle/bintriage/internal/format/pe"
	"github.com/standardbeagle/bintriage/internal/ioref"
	"github.com/standardbeagle/bintriage/internal/packer"
	"github.com/standardbeagle/bintriage/internal/sniff"
	"github.com/standardbeagle/bintriage/internal/strscan"
	"github.com/standardbeagle/bintriage/internal/symbols"
)

// formatPriority breaks ties between verdicts of equal total weight, a
// fixed order that keeps Run's output stable under permutation of
// sniffer emission order (spec §4.3 stage 7's "stable under permutation
// of sniffer order for equal total weight").
var formatPriority = map[string]int{
	"PE": 0, "ELF": 1, "Mach-O": 2, "JAR": 3, "Java-class": 4, "Python-pyc": 5, "ZIP": 6,
}

// hypothesis accumulates weighted evidence for one (format, arch, bits,
// endian) candidate before it is clamped into a final Verdict.
type hypothesis struct {
	format     string
	arch       string
	bits       int
	endianness string
	weight     float64
	signals    []string
}

func key(format, arch string, bits int, endianness string) string {
	return format + "|" + arch + "|" + strconv.Itoa(bits) + "|" + endianness
}

// Run executes the full pipeline over r and returns a TriageArtifact.
// It always returns a non-nil artifact; parser/stage failures are
// recorded in Errors rather than aborting, per spec §4.3's contract
// that a run yields "at least one verdict or a well-formed error
// record."
func Run(r *ioref.Reader, path string, cfg bconfig.Config) *artifact.TriageArtifact {
	size := r.Size()

	headerLen := cfg.IO.MaxHeaderSize
	if headerLen <= 0 || headerLen > size {
		headerLen = size
	}
	header, _ := r.ReadAt(0, int(headerLen))

	whole := header
	if cfg.IO.MaxEntropySize > 0 && cfg.IO.MaxEntropySize < size {
		whole, _ = r.ReadAt(0, int(cfg.IO.MaxEntropySize))
	} else if cfg.IO.MaxEntropySize == 0 || size <= cfg.IO.MaxEntropySize {
		whole, _ = r.ReadAt(0, int(size))
	}

	id := artifact.BinaryFromContent(whole, path).Value
	out := artifact.NewTriageArtifact(id)
	out.Path = path
	out.Size = size
	out.Hashes = computeHashes(whole)
	out.Budgets = artifact.Budgets{BytesRead: r.BytesRead(), MaxReadBytes: r.Limits().MaxReadBytes}

	// Stage 1: sniff.
	hints := sniff.Combined(path, header, sniff.DefaultWeights())
	hyps := make(map[string]*hypothesis)
	for _, h := range hints {
		out.Signals = append(out.Signals, artifact.Signal{Source: h.Source, Label: h.Label, Weight: h.Weight})
		addEvidence(hyps, h.Label, "", 0, "", h.Weight, "sniff:"+string(h.Source))
	}

	// Stage 2: parser validation.
	var symSummary *artifact.SymbolsSummary
	var overlay *packer.Overlay

	if peFile, err := pe.Parse(r); err == nil {
		arch, bits := peArch(peFile.Coff.Machine)
		addEvidence(hyps, "PE", arch, bits, "little", cfg.Scoring.ParserSuccessConfidence, "parser:pe")
		mergeGenericIntoSpecific(hyps, "PE", arch, bits, "little")
		symSummary = peSymbolsSummary(peFile)
		overlay = peOverlay(peFile, whole)

		sf := peFile.DeriveSecurityFeatures()
		out.PESecurity = &sf

		if rh, err := peFile.ParseRichHeader(); err == nil && rh != nil {
			out.RichHeader = rh
		}

		if sections, err := peFile.Sections(); err == nil {
			if iat, err := peFile.IATMap(sections); err == nil && len(iat) > 0 {
				out.StubMap = iat
			}
		}
	} else {
		out.Errors = append(out.Errors, "pe: "+err.Error())
	}

	if elfFile, err := elf.Parse(r); err == nil {
		arch, bits := elfArch(elfFile.Machine)
		endian := elfEndianness(elfFile)
		addEvidence(hyps, "ELF", arch, bits, endian, cfg.Scoring.ParserSuccessConfidence, "parser:elf")
		mergeGenericIntoSpecific(hyps, "ELF", arch, bits, endian)
		overlay = elfOverlay(elfFile, whole)

		segs, segErr := elfFile.Segments()
		sections, secErr := elfFile.Sections()
		if segErr == nil && secErr == nil {
			var dyn *elf.Dynamic
			symSummary, dyn = elfSymbolsSummary(elfFile, sections, segs)

			var allSymbols []common.Symbol
			if dynsym, err := elfFile.Dynsym(sections); err == nil {
				allSymbols = append(allSymbols, dynsym...)
			}
			if symtab, err := elfFile.Symtab(sections); err == nil {
				allSymbols = append(allSymbols, symtab...)
			}
			sf := elfFile.DeriveSecurityFeatures(segs, dyn, allSymbols)
			out.ELFSecurity = &sf
		}

		if sections != nil {
			if pltEntries, err := elfFile.PLTMap(sections); err == nil && len(pltEntries) > 0 {
				stubMap := make(map[uint64]string, len(pltEntries))
				for _, e := range pltEntries {
					stubMap[e.Address] = e.Name
				}
				out.StubMap = stubMap
			}
		}

		if segs != nil {
			if buildID, err := elfFile.BuildID(segs); err == nil && buildID != "" {
				out.ID = artifact.BinaryFromUUID(buildID).Value
			}
		}
	} else {
		out.Errors = append(out.Errors, "elf: "+err.Error())
	}

	if machoFile, err := macho.Parse(r); err == nil {
		bits := 32
		if machoFile.Header.Is64 {
			bits = 64
		}
		endian := "little"
		if machoFile.Header.BigEndian {
			endian = "big"
		}
		arch := machoArch(machoFile.Header.CPU)
		addEvidence(hyps, "Mach-O", arch, bits, endian, cfg.Scoring.ParserSuccessConfidence, "parser:macho")
		mergeGenericIntoSpecific(hyps, "Mach-O", arch, bits, endian)
	}

	if major, minor, ok := bytecode.SniffJavaClass(whole); ok {
		addEvidence(hyps, "Java-class", "jvm", 0, "big", cfg.Headers.DetailedConfidence, "parser:java-class")
		mergeGenericIntoSpecific(hyps, "Java-class", "jvm", 0, "big")
		_ = major
		_ = minor
	}

	// Stage 3: entropy.
	overall := entropy.Shannon(whole)
	windows := entropy.AnalyzeWindows(whole, entropy.WindowConfig{
		WindowSize: cfg.Entropy.WindowSize, StepSize: cfg.Entropy.StepSize, MaxWindows: cfg.Entropy.MaxWindows,
	})
	thresholds := entropy.Thresholds{
		Text: cfg.Entropy.Thresholds.Text, Code: cfg.Entropy.Thresholds.Code,
		Compressed: cfg.Entropy.Thresholds.Compressed, Encrypted: cfg.Entropy.Thresholds.Encrypted,
	}
	classification := entropy.Classify(overall, thresholds)
	anomalyCfg := entropy.AnomalyConfig{
		HeaderSize: cfg.Entropy.HeaderSize, LowHeader: cfg.Entropy.Thresholds.LowHeader,
		HighBody: cfg.Entropy.Thresholds.HighBody, CliffDelta: cfg.Entropy.Thresholds.CliffDelta,
	}
	anomalies := entropy.DetectAnomalies(whole, windows, anomalyCfg)

	es := &artifact.EntropySummary{Overall: overall, Classification: classification, Anomalies: anomalies}
	if mn, ok := windows.Min(); ok {
		es.WindowMin = mn
	}
	if mx, ok := windows.Max(); ok {
		es.WindowMax = mx
	}
	if mean, ok := windows.Mean(); ok {
		es.WindowMean = mean
	}
	out.Entropy = es
	for _, a := range anomalies {
		w := cfg.Entropy.Weights.CliffDetected
		if a.Kind == "header_body_mismatch" {
			w = cfg.Entropy.Weights.HeaderBodyMismatch
		}
		out.Signals = append(out.Signals, artifact.Signal{Source: sniff.SourceHeuristic, Label: "entropy:" + a.Kind, Weight: w})
	}
	if classification == entropy.ClassEncrypted {
		out.Signals = append(out.Signals, artifact.Signal{Source: sniff.SourceHeuristic, Label: "entropy:encrypted_random", Weight: cfg.Entropy.Weights.EncryptedRandom})
	}

	// Stage 4: packer scan.
	packerHits := packer.Scan(whole, packer.Config{
		ScanLimit: cfg.Packers.ScanLimit, UPXDetectionWeight: cfg.Packers.UPXDetectionWeight,
		UPXVersionWeight: cfg.Packers.UPXVersionWeight, PackerSignalWeight: cfg.Packers.PackerSignalWeight,
	})
	out.Packers = packerHits
	for _, hit := range packerHits {
		out.Signals = append(out.Signals, artifact.Signal{Source: sniff.SourceHeuristic, Label: "packer:" + hit.Family, Weight: hit.Confidence})
	}

	// Stage 5: overlay (computed inline with parser validation above).
	out.Overlay = overlay

	// Strings and symbols summaries.
	sc := strscan.Config{
		MinLength: cfg.Heuristics.MinStringLength, MaxSamples: cfg.Heuristics.StringSampleLimit,
		MaxScanBytes: int(cfg.IO.MaxSniffSize) * 16,
	}
	if sc.MaxScanBytes <= 0 || sc.MaxScanBytes > len(whole) {
		sc.MaxScanBytes = len(whole)
	}
	strSummary := strscan.Scan(whole, sc)
	out.StringsSummary = &strSummary
	out.SymbolsSummary = symSummary

	// Stage 6: fuse.
	out.Verdicts = fuse(hyps, cfg)

	return out
}

func addEvidence(hyps map[string]*hypothesis, format, arch string, bits int, endian string, weight float64, signal string) {
	k := key(format, arch, bits, endian)
	h, ok := hyps[k]
	if !ok {
		h = &hypothesis{format: format, arch: arch, bits: bits, endianness: endian}
		hyps[k] = h
	}
	h.weight += weight
	h.signals = append(h.signals, signal)
}

// mergeGenericIntoSpecific folds a format-only sniff hypothesis (arch
// unknown at stage 1) into the specific hypothesis a parser just
// confirmed, so a real typed binary doesn't end up as two competing
// verdicts for the same format — one correctly typed, one degenerate
// and, by virtue of summing extension+content+header weight, possibly
// outranking it (spec §4.3 stage 6).
func mergeGenericIntoSpecific(hyps map[string]*hypothesis, format, arch string, bits int, endian string) {
	genericKey := key(format, "", 0, "")
	generic, ok := hyps[genericKey]
	if !ok {
		return
	}
	specific := hyps[key(format, arch, bits, endian)]
	specific.weight += generic.weight
	specific.signals = append(specific.signals, generic.signals...)
	delete(hyps, genericKey)
}

func fuse(hyps map[string]*hypothesis, cfg bconfig.Config) []artifact.Verdict {
	var verdicts []artifact.Verdict
	for _, h := range hyps {
		confidence := h.weight
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		verdicts = append(verdicts, artifact.Verdict{
			Format: h.format, Arch: h.arch, Bits: h.bits, Endianness: h.endianness,
			Confidence: confidence, SignalNames: h.signals,
		})
	}
	sort.SliceStable(verdicts, func(i, j int) bool {
		if verdicts[i].Confidence != verdicts[j].Confidence {
			return verdicts[i].Confidence > verdicts[j].Confidence
		}
		return formatPriority[verdicts[i].Format] < formatPriority[verdicts[j].Format]
	})
	return verdicts
}

func computeHashes(data []byte) artifact.Hashes {
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)
	return artifact.Hashes{
		MD5:    hex.EncodeToString(md5Sum[:]),
		SHA1:   hex.EncodeToString(sha1Sum[:]),
		SHA256: hex.EncodeToString(sha256Sum[:]),
	}
}

func peArch(m pe.Machine) (string, int) {
	switch m {
	case pe.MachineI386:
		return "x86", 32
	case pe.MachineX64:
		return "x86_64", 64
	case pe.MachineARM, pe.MachineARMNT:
		return "arm", 32
	case pe.MachineARM64:
		return "arm64", 64
	default:
		return "unknown", 0
	}
}

func elfArch(m elf.Machine) (string, int) {
	switch m {
	case elf.EM_386:
		return "x86", 32
	case elf.EM_X86_64:
		return "x86_64", 64
	case elf.EM_ARM:
		return "arm", 32
	case elf.EM_AARCH64:
		return "arm64", 64
	case elf.EM_MIPS:
		return "mips", 32
	case elf.EM_PPC:
		return "ppc", 32
	case elf.EM_PPC64:
		return "ppc64", 64
	case elf.EM_RISCV:
		return "riscv", 0
	default:
		return "unknown", 0
	}
}

func elfEndianness(f *elf.File) string {
	if f.Ident.Data == elf.DataBig {
		return "big"
	}
	return "little"
}

func machoArch(c macho.CPUType) string {
	switch c {
	case macho.CPUX86:
		return "x86"
	case macho.CPUX8664:
		return "x86_64"
	case macho.CPUArm:
		return "arm"
	case macho.CPUArm64:
		return "arm64"
	default:
		return "unknown"
	}
}

func peSymbolsSummary(f *pe.File) *artifact.SymbolsSummary {
	sections, err := f.Sections()
	if err != nil {
		return nil
	}
	summary := &artifact.SymbolsSummary{}

	modules, err := f.Imports(sections)
	if err == nil {
		var names []string
		for _, m := range modules {
			summary.ImportCount += len(m.Entries)
			for _, e := range m.Entries {
				if e.Name != "" {
					names = append(names, e.Name)
				}
			}
		}
		summary.Imphash = symbols.Imphash(modules)
		summary.SuspiciousAPIs = symbols.DetectSuspiciousImports(names, nil, 64)
	}

	if exports, err := f.Exports(sections); err == nil {
		summary.ExportCount = len(exports)
	}

	summary.TLSCallbackCount = len(symbols.TLSCallbacks(f, sections))
	summary.PDBPath = symbols.PDBPath(f, sections, nil)

	return summary
}

// elfSymbolsSummary mirrors peSymbolsSummary for ELF input: it wires
// ParseDynamic (RPATH/RUNPATH/NEEDED/SONAME, spec §2 L7) and the
// dynamic symbol table's import/export split into a SymbolsSummary,
// and returns the parsed Dynamic alongside so the caller can feed it
// into DeriveSecurityFeatures without reparsing.
func elfSymbolsSummary(f *elf.File, sections *elf.SectionTable, segs *elf.SegmentTable) (*artifact.SymbolsSummary, *elf.Dynamic) {
	summary := &artifact.SymbolsSummary{}

	dyn, _ := f.ParseDynamic(segs)
	if dyn != nil {
		summary.Needed = dyn.Needed
		summary.SONAME = dyn.SONAME
		summary.RPath = dyn.RPath
		summary.RunPath = dyn.RunPath
	}

	dynsym, _ := f.Dynsym(sections)
	var importNames []string
	for _, sym := range dynsym {
		if sym.Name == "" {
			continue
		}
		if sym.HasAddress {
			summary.ExportCount++
		} else {
			summary.ImportCount++
			importNames = append(importNames, sym.Name)
		}
	}
	summary.SuspiciousAPIs = symbols.DetectSuspiciousImports(importNames, nil, 64)

	return summary, dyn
}

func peOverlay(f *pe.File, whole []byte) *packer.Overlay {
	sections, err := f.Sections()
	if err != nil {
		return nil
	}
	has, _ := f.HasOverlay(sections)
	if !has {
		return nil
	}
	start := pe.OverlayStart(sections, uint64(f.Opt.SizeOfHeaders))
	ov := packer.Isolate(whole, start)
	return &ov
}

func elfOverlay(f *elf.File, whole []byte) *packer.Overlay {
	sections, err := f.Sections()
	if err != nil {
		return nil
	}
	var end uint64
	for _, s := range sections.All {
		if e := s.FileOffset + s.FileSize; e > end {
			end = e
		}
	}
	if segs, err := f.Segments(); err == nil {
		for _, s := range segs.All {
			if e := s.Offset + s.FileSz; e > end {
				end = e
			}
		}
	}
	ov := packer.Isolate(whole, end)
	if ov.Size == 0 {
		return nil
	}
	return &ov
}

