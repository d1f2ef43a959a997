package triage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bintriage/internal/artifact"
	"github.com/standardbeagle/bintriage/internal/bconfig"
	"github.com/standardbeagle/bintriage/internal/format/pe"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

// buildMinimalPE64 constructs a tiny well-formed PE32+ image, mirroring
// internal/format/pe's own fixture: DOS stub, COFF header (x86-64),
// PE32+ optional header with 16 data directories, and one ".text"
// section covering the whole body.
func buildMinimalPE64() []byte {
	le := binary.LittleEndian
	const lfanew = 0x80
	const dosSignature = 0x5A4D
	const pe32PlusMagic = 0x20B

	dos := make([]byte, lfanew)
	le.PutUint16(dos[0:2], dosSignature)
	le.PutUint32(dos[0x3c:0x40], lfanew)

	sig := []byte("PE\x00\x00")

	coff := make([]byte, 20)
	le.PutUint16(coff[0:2], uint16(pe.MachineX64))
	le.PutUint16(coff[2:4], 1) // number of sections
	le.PutUint16(coff[16:18], 112+16*8)

	optSize := 112 + 16*8
	opt := make([]byte, optSize)
	le.PutUint16(opt[0:2], pe32PlusMagic)
	le.PutUint32(opt[16:20], 0x1000)          // AddressOfEntryPoint
	le.PutUint64(opt[24:32], 0x140000000)     // ImageBase
	le.PutUint32(opt[32:36], 0x1000)          // SectionAlignment
	le.PutUint32(opt[36:40], 0x200)           // FileAlignment
	le.PutUint32(opt[56:60], 0x3000)          // SizeOfImage
	le.PutUint32(opt[60:64], uint32(lfanew+4+20+optSize+40)) // SizeOfHeaders
	le.PutUint16(opt[68:70], uint16(pe.SubsystemWindowsCUI))
	le.PutUint16(opt[70:72], pe.DllCharDynamicBase|pe.DllCharNXCompat)
	le.PutUint32(opt[108:112], 16)

	sectionHeader := make([]byte, 40)
	copy(sectionHeader[0:8], []byte(".text"))
	headersEnd := uint32(lfanew + 4 + 20 + optSize + 40)
	le.PutUint32(sectionHeader[8:12], 0x200)   // VirtualSize
	le.PutUint32(sectionHeader[12:16], 0x1000) // VirtualAddress
	le.PutUint32(sectionHeader[16:20], 0x200)  // SizeOfRawData
	le.PutUint32(sectionHeader[20:24], headersEnd)
	le.PutUint32(sectionHeader[36:40], pe.SectionMemRead|pe.SectionMemExecute)

	body := make([]byte, 0x200)

	out := append(dos, sig...)
	out = append(out, coff...)
	out = append(out, opt...)
	out = append(out, sectionHeader...)
	out = append(out, body...)
	return out
}

func TestFuse_RanksByConfidenceThenFormatPriority(t *testing.T) {
	hyps := map[string]*hypothesis{
		"a": {format: "ELF", weight: 0.6},
		"b": {format: "PE", weight: 0.6},
		"c": {format: "Mach-O", weight: 0.2},
	}
	verdicts := fuse(hyps, bconfig.Default())
	require.Len(t, verdicts, 3)
	assert.Equal(t, "PE", verdicts[0].Format)
	assert.Equal(t, "ELF", verdicts[1].Format)
	assert.Equal(t, "Mach-O", verdicts[2].Format)
}

func TestFuse_ClampsConfidenceToUnitInterval(t *testing.T) {
	hyps := map[string]*hypothesis{"a": {format: "PE", weight: 1.8}}
	verdicts := fuse(hyps, bconfig.Default())
	require.Len(t, verdicts, 1)
	assert.Equal(t, 1.0, verdicts[0].Confidence)
}

func TestAddEvidence_AccumulatesWeightForSameHypothesis(t *testing.T) {
	hyps := make(map[string]*hypothesis)
	addEvidence(hyps, "PE", "x86_64", 64, "little", 0.3, "sniff:content")
	addEvidence(hyps, "PE", "x86_64", 64, "little", 0.4, "parser:pe")
	require.Len(t, hyps, 1)
	h := hyps[key("PE", "x86_64", 64, "little")]
	assert.InDelta(t, 0.7, h.weight, 1e-9)
	assert.Len(t, h.signals, 2)
}

func TestComputeHashes(t *testing.T) {
	h := computeHashes([]byte("hello"))
	assert.Len(t, h.MD5, 32)
	assert.Len(t, h.SHA1, 40)
	assert.Len(t, h.SHA256, 64)
}

func TestPEArchAndELFArch(t *testing.T) {
	arch, bits := peArch(0x8664)
	assert.Equal(t, "x86_64", arch)
	assert.Equal(t, 64, bits)

	arch, bits = elfArch(62)
	assert.Equal(t, "x86_64", arch)
	assert.Equal(t, 64, bits)
}

func TestRun_OnUnrecognizedDataYieldsNoVerdictsAndRecordsErrors(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}
	r := ioref.FromBytes(data, ioref.DefaultLimits())

	out := Run(r, "payload.bin", bconfig.Default())
	require.NotNil(t, out)
	assert.Empty(t, out.Verdicts)
	assert.NotEmpty(t, out.Errors)
	assert.Equal(t, int64(len(data)), out.Size)
	assert.NotEmpty(t, out.Hashes.SHA256)
	_, ok := out.PrimaryVerdict()
	assert.False(t, ok)
}

func TestRun_MergesSniffEvidenceIntoParserConfirmedHypothesis(t *testing.T) {
	data := buildMinimalPE64()
	r := ioref.FromBytes(data, ioref.DefaultLimits())

	out := Run(r, "payload.exe", bconfig.Default())
	require.NotEmpty(t, out.Verdicts)

	v, ok := out.PrimaryVerdict()
	require.True(t, ok)
	assert.Equal(t, "PE", v.Format)
	assert.Equal(t, "x86_64", v.Arch)
	assert.Equal(t, 64, v.Bits)

	// Only one PE hypothesis should survive the fuse stage: the generic
	// extension+content sniff evidence must have folded into the
	// parser-confirmed (PE, x86_64, 64) hypothesis rather than standing
	// apart as a second, arch-less verdict.
	peVerdicts := 0
	for _, verdict := range out.Verdicts {
		if verdict.Format == "PE" {
			peVerdicts++
		}
	}
	assert.Equal(t, 1, peVerdicts)

	require.NotNil(t, out.PESecurity)
	assert.True(t, out.PESecurity.ASLR)
}

func TestRun_ProducesArtifactSchemaVersion(t *testing.T) {
	r := ioref.FromBytes([]byte("not a binary"), ioref.DefaultLimits())
	out := Run(r, "", bconfig.Default())
	assert.Equal(t, artifact.DefaultSchemaVersion, out.SchemaVersion)
}
