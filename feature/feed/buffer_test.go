package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_TryExtract_RequiresClosingTagOnLatestLine(t *testing.T) {
	buf := NewBuffer()
	buf.Append("<person><sourcedid><id>p1</id></sourcedid></person>\n")
	buf.Append("<comments>x</comments>\n")

	// The person span is complete but the latest line does not close it.
	_, ok := buf.TryExtract("person")
	assert.False(t, ok)

	text, ok := buf.TryExtract("comments")
	require.True(t, ok)
	assert.Equal(t, "<comments>x</comments>", text)
}

func TestBuffer_TryExtract_MultiLineAndAttributes(t *testing.T) {
	buf := NewBuffer()
	buf.Append("<GROUP recstatus=\"1\">\n")
	buf.Append("  <sourcedid><id>CS101</id></sourcedid>\n")
	_, ok := buf.TryExtract("group")
	assert.False(t, ok)

	buf.Append("</Group>\n")
	text, ok := buf.TryExtract("group")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text, "<GROUP recstatus=\"1\">"))
	assert.True(t, strings.HasSuffix(text, "</Group>"))
}

func TestBuffer_TryExtract_DoesNotMatchLongerTagName(t *testing.T) {
	buf := NewBuffer()
	buf.Append("<grouptype>a</grouptype></group>\n")

	_, ok := buf.TryExtract("group")
	assert.False(t, ok)
}

func TestBuffer_Discard_RemovesFirstSpanOnly(t *testing.T) {
	buf := NewBuffer()
	buf.Append("<enterprise>\n")
	buf.Append("<person>a</person>\n<person>b</person>\n")

	text, ok := buf.TryExtract("person")
	require.True(t, ok)
	assert.Equal(t, "<person>a</person>", text)

	buf.Discard("person")
	assert.Equal(t, "<enterprise>\n\n<person>b</person>", buf.String())

	text, ok = buf.TryExtract("person")
	require.True(t, ok)
	assert.Equal(t, "<person>b</person>", text)

	buf.Discard("person")
	assert.Equal(t, "<enterprise>", buf.String())

	_, ok = buf.TryExtract("person")
	assert.False(t, ok)
}

func TestBuffer_Discard_NoMatchLeavesBufferUntouched(t *testing.T) {
	buf := NewBuffer()
	buf.Append("  <person>open\n")
	buf.Discard("person")
	assert.Equal(t, "  <person>open\n", buf.String())
}

func TestBuffer_PeakAndReset(t *testing.T) {
	buf := NewBuffer()
	buf.Append("<comments>1234</comments>")
	buf.Discard("comments")
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, len("<comments>1234</comments>"), buf.Peak())

	buf.Reset()
	assert.Equal(t, 0, buf.Peak())
}

func TestBuffer_AppendGrowsWithoutCopyingPerLine(t *testing.T) {
	const members = 5000
	line := "  <member><sourcedid><id>p</id></sourcedid><role roletype=\"01\"><status>1</status></role></member>\n"

	allocs := testing.AllocsPerRun(1, func() {
		buf := NewBuffer()
		buf.Append("<membership>\n")
		for i := 0; i < members; i++ {
			buf.Append(line)
		}
	})
	assert.Less(t, allocs, float64(members/10))

	buf := NewBuffer()
	buf.Append("<membership>\n")
	for i := 0; i < members; i++ {
		buf.Append(line)
	}
	buf.Append("</membership>\n")
	text, ok := buf.TryExtract("membership")
	require.True(t, ok)
	assert.Equal(t, members, strings.Count(text, "<member>"))

	buf.Discard("membership")
	assert.Equal(t, 0, buf.Len())
}
