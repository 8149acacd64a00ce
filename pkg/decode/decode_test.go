package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a;b;c", []string{"a", "b", "c"}},
		{"trailing empty", "a;b;", []string{"a", "b", ""}},
		{"quoted separator", `1;"Smith; John";x`, []string{"1", "Smith; John", "x"}},
		{"escaped quote", `"say ""hi""";2`, []string{`say "hi"`, "2"}},
		{"separator and quote", `"a;""b"`, []string{`a;"b`}},
		{"empty quoted", `"";x`, []string{"", "x"}},
		{"single field", "only", []string{"only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SplitFields(tt.line))
		})
	}
}

func TestCoerce(t *testing.T) {
	require := require.New(t)

	require.Equal(KindNull, Coerce("").Kind())

	for _, n := range []string{"0", "42", "-7", "3.14", "-0.5"} {
		v := Coerce(n)
		require.Equal(KindNumber, v.Kind(), n)
		require.Equal(n, v.Text())
	}

	b, ok := Coerce("true").Bool()
	require.True(ok)
	require.True(b)
	b, ok = Coerce("false").Bool()
	require.True(ok)
	require.False(b)

	for _, s := range []string{"True", "FALSE", "1.", ".5", "1e3", "abc", " 1", "+1"} {
		require.Equal(KindString, Coerce(s).Kind(), s)
	}
}

func TestDecode(t *testing.T) {
	require := require.New(t)
	content := strings.Join([]string{
		"id;name;active;score;note",
		"",
		`1;"Doe; Jane";true;9.5;`,
		"   ",
		`2;"He said ""no""";false;;x`,
		"3;Short",
		"",
	}, "\r\n")

	rows := Decode(content)
	require.Len(rows, 3)

	require.Equal(KindNumber, rows[0]["id"].Kind())
	require.Equal("Doe; Jane", rows[0]["name"].Text())
	require.Equal(KindBool, rows[0]["active"].Kind())
	require.Equal(float64(9.5), rows[0]["score"].Native())
	require.Equal(KindNull, rows[0]["note"].Kind())

	require.Equal(`He said "no"`, rows[1]["name"].Text())
	require.Equal(KindNull, rows[1]["score"].Kind())
	require.Equal("x", rows[1]["note"].Text())

	// missing trailing fields are null, never missing
	require.Len(rows[2], 5)
	require.Equal(KindNull, rows[2]["active"].Kind())
	require.Equal(KindNull, rows[2]["note"].Kind())
}

func TestDecodeEmpty(t *testing.T) {
	require.Empty(t, Decode(""))
	require.Empty(t, Decode("\n \n"))
	require.Empty(t, Decode("id;name\n"))
}

func TestDecodeWithSchema(t *testing.T) {
	require := require.New(t)
	content := "user_id;age;vip\n007;31;true\n008;old;false\n009;;maybe\n"

	res := DecodeWithSchema(content, Schema{
		"user_id": ColumnString,
		"age":     ColumnNumber,
		"vip":     ColumnBool,
	})
	require.Equal([]string{"user_id", "age", "vip"}, res.Header)
	require.Len(res.Rows, 1)
	require.Equal("007", res.Rows[0]["user_id"].Native())
	require.Equal(int64(31), res.Rows[0]["age"].Native())

	require.Len(res.Warnings, 2)
	require.Equal(3, res.Warnings[0].Line)
	require.Equal("age", res.Warnings[0].Column)
	require.Equal(4, res.Warnings[1].Line)
	require.Equal("vip", res.Warnings[1].Column)
}

func TestDecodeWithoutSchemaCoercesNumericIDs(t *testing.T) {
	rows := Decode("user_id\n007\n")
	require.Len(t, rows, 1)
	require.Equal(t, KindNumber, rows[0]["user_id"].Kind())
	// source text survives for map keys
	require.Equal(t, "007", rows[0]["user_id"].Text())
}

func TestDecodeExtraFields(t *testing.T) {
	res := DecodeWithSchema("a;b\n1;2;3\n", nil)
	require.Len(t, res.Rows, 1)
	require.Len(t, res.Rows[0], 2)
	require.Len(t, res.Warnings, 1)
}

func FuzzSplitFields(f *testing.F) {
	f.Add(`a;"b;c";""""`)
	f.Add(`;;`)
	f.Add(`"unterminated;x`)
	f.Fuzz(func(t *testing.T, line string) {
		fields := SplitFields(line)
		if len(fields) == 0 {
			t.Fatalf("no fields for %q", line)
		}
		var quoted []string
		for _, field := range fields {
			if strings.ContainsAny(field, `;"`) {
				quoted = append(quoted, `"`+strings.ReplaceAll(field, `"`, `""`)+`"`)
				continue
			}
			quoted = append(quoted, field)
		}
		again := SplitFields(strings.Join(quoted, ";"))
		if len(again) != len(fields) {
			t.Fatalf("re-encoding %q changed field count: %v vs %v", line, fields, again)
		}
		for i := range fields {
			if fields[i] != again[i] {
				t.Fatalf("re-encoding %q changed field %d: %q vs %q", line, i, fields[i], again[i])
			}
		}
	})
}
