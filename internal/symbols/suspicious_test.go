package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAPIName(t *testing.T) {
	assert.Equal(t, "createfile", NormalizeAPIName("CreateFileA"))
	assert.Equal(t, "createfile", NormalizeAPIName("CreateFileW"))
	assert.Equal(t, "regopenkeyex", NormalizeAPIName("_RegOpenKeyEx@16"))
}

func TestDetectSuspiciousImports_BuiltinAndExtra(t *testing.T) {
	extra := NewExtraAPISet()
	extra.Add("SomeCustomBackdoorCall")

	names := []string{"CreateFileA", "VirtualAllocEx", "SomeCustomBackdoorCall", "Sleep"}
	out := DetectSuspiciousImports(names, extra, 10)
	assert.ElementsMatch(t, []string{"virtualallocex", "somecustombackdoorcall"}, out)
}

func TestDetectSuspiciousImports_RespectsMaxOut(t *testing.T) {
	names := []string{"OpenProcess", "VirtualAllocEx", "CreateRemoteThread"}
	out := DetectSuspiciousImports(names, nil, 1)
	assert.Len(t, out, 1)
}

func TestExtraAPISet_ContainsAfterAdd(t *testing.T) {
	s := NewExtraAPISet()
	s.Add("foo")
	assert.True(t, s.Contains("foo"))
	assert.False(t, s.Contains("bar"))
}
