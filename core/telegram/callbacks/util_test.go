package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		in, ns, value string
	}{
		{"qrtype|wifi", "qrtype", "wifi"},
		{"\fbc|confirm", "bc", "confirm"},
		{"ft|", "ft", ""},
		{"alias", "alias", ""},
		{"wifisec|WPA|extra", "wifisec", "WPA|extra"},
	}
	for _, tc := range cases {
		ns, value := Split(tc.in)
		if ns != tc.ns || value != tc.value {
			t.Fatalf("Split(%q) = %q, %q", tc.in, ns, value)
		}
	}
}

func TestParseCallbackDataPrefersUnique(t *testing.T) {
	ns, value := ParseCallbackData(&tele.Callback{Unique: "qrfb", Data: "yes"})
	if ns != "qrfb" || value != "yes" {
		t.Fatalf("got %q, %q", ns, value)
	}
	if ns, _ := ParseCallbackData(nil); ns != "" {
		t.Fatalf("nil callback gave %q", ns)
	}
	if got := Encode("alias", "skip"); got != "alias|skip" {
		t.Fatalf("encode = %q", got)
	}
}
