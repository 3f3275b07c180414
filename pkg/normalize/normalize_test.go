package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trim and upper", in: "  minor rect failure ", want: "MINOR RECT FAILURE"},
		{name: "symbols removed", in: "NodeB Name=TAMREY1591, LogicRNCID=141", want: "NODEB NAMETAMREY1591 LOGICRNCID141"},
		{name: "non ascii stripped", in: "  núcleo-5  ", want: "NCLEO5"},
		{name: "whitespace runs collapsed", in: "a    b  c", want: "A B C"},
		{name: "tabs dropped", in: "a\tb", want: "AB"},
		{name: "only symbols", in: "-- / --", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in))
		})
	}
}

func TestStringIdempotent(t *testing.T) {
	inputs := []string{
		"  Minor  Rect Failure!! ",
		"NODEB NAME=TAMREY1591, LOGICRNCID=141",
		"ÁREA   norte\t 12",
		"peninsula",
		"",
	}

	for _, in := range inputs {
		once := String(in)
		assert.Equal(t, once, String(once), "input %q", in)
		assert.Regexp(t, `^[A-Z0-9 ]*$`, once)
		assert.NotContains(t, once, "  ")
	}
}

func TestAlnum(t *testing.T) {
	assert.Equal(t, "YUCYAX0519", Alnum(" yucyax-0519 "))
	assert.Equal(t, "", Alnum("%% %%"))
}
