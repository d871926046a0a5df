package linediff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffIdentical(t *testing.T) {
	for _, s := range []string{"", "a", "a\n\nb", "x\r\ny"} {
		ops := Diff(s, s)
		assert.NotNil(t, ops)
		assert.Empty(t, ops)
	}
}

func TestDiffOperations(t *testing.T) {
	ops := Diff("a\nb\nc", "a\nB")
	assert.Equal(t, []Op{
		{Op: OpReplace, Line: 1, Old: "b", New: "B"},
		{Op: OpDelete, Line: 2, Old: "c"},
	}, ops)

	ops = Diff("a", "a\n\nc")
	assert.Equal(t, []Op{
		{Op: OpInsert, Line: 1, Value: ""},
		{Op: OpInsert, Line: 2, Value: "c"},
	}, ops)
}

func TestDiffIsPositional(t *testing.T) {
	ops := Diff("one\ntwo\nthree", "one\nnew\ntwo\nthree")
	assert.Equal(t, []Op{
		{Op: OpReplace, Line: 1, Old: "two", New: "new"},
		{Op: OpReplace, Line: 2, Old: "three", New: "two"},
		{Op: OpInsert, Line: 3, Value: "three"},
	}, ops)
}

func TestDiffNormalizesCRLF(t *testing.T) {
	assert.Empty(t, Diff("a\r\nb", "a\nb"))
}

func TestApplyRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"", "a\nb"},
		{"a\nb", ""},
		{"a\nb\nc", "a\nB"},
		{"one\ntwo\nthree", "one\nnew\ntwo\nthree"},
		{"x\n\n\ny", "\n\nx"},
		{"comfort movies 🎬\n\n1. spirited away\n2. coraline", "comfort movies 🎬\n\n1. spirited away\n2. ponyo\n3. coraline"},
	}
	for _, c := range cases {
		got, err := Apply(c[0], Diff(c[0], c[1]))
		require.NoError(t, err)
		assert.Equal(t, c[1], got, "diff %q -> %q", c[0], c[1])
	}
}

func TestApplyRejectsOutOfRange(t *testing.T) {
	_, err := Apply("a", []Op{{Op: OpReplace, Line: 3, New: "x"}})
	assert.Error(t, err)

	_, err = Apply("a", []Op{{Op: OpDelete, Line: 1, Old: "x"}})
	assert.Error(t, err)

	_, err = Apply("a", []Op{{Op: "move", Line: 0}})
	assert.Error(t, err)
}

func TestOpJSONShape(t *testing.T) {
	data, err := json.Marshal(Diff("a\nb", "\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"op":"replace","line":0,"old":"a","new":""},
		{"op":"replace","line":1,"old":"b","new":""}
	]`, string(data))

	data, err = json.Marshal([]Op{{Op: OpInsert, Line: 2, Value: "x"}, {Op: OpDelete, Line: 3, Old: ""}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"op":"insert","line":2,"value":"x"},{"op":"delete","line":3,"old":""}]`, string(data))

	var back []Op
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, OpInsert, back[0].Op)
	assert.Equal(t, "x", back[0].Value)
}
