package flow

import (
	"fmt"
	"net/url"
	"strings"
)

// Field is one collected answer of a QR type.
type Field struct {
	Name   string
	Prompt string
	// Optional fields accept Skip or an empty answer.
	Optional bool
	// Choice fields are answered through buttons, never typed.
	Choice bool
}

// QRType is a payload kind offered by the type picker.
type QRType struct {
	Value  string
	Label  string
	Fields []Field
	build  func(v map[string]string) string
}

// Field names shared between types and builders.
const (
	FieldContent  = "content"
	FieldSSID     = "ssid"
	FieldPassword = "password"
	FieldSecurity = "security"
	FieldTo       = "to"
	FieldSubject  = "subject"
	FieldBody     = "body"
	FieldPhone    = "phone"
	FieldNumber   = "number"
	FieldMessage  = "message"
	FieldPayeeID  = "pa"
	FieldPayee    = "pn"
	FieldAmount   = "am"
	FieldNote     = "tn"
)

// WiFi security choices carried by wifisec callbacks.
const (
	SecurityWPA  = "WPA"
	SecurityWEP  = "WEP"
	SecurityNone = "NONE"
)

// Securities lists the accepted WiFi security values.
var Securities = []string{SecurityWPA, SecurityWEP, SecurityNone}

var qrTypes = []QRType{
	{
		Value:  "text",
		Label:  "Text",
		Fields: []Field{{Name: FieldContent, Prompt: "Send text:"}},
		build:  func(v map[string]string) string { return v[FieldContent] },
	},
	{
		Value:  "link",
		Label:  "Link",
		Fields: []Field{{Name: FieldContent, Prompt: "Send link (https://...)"}},
		build:  func(v map[string]string) string { return v[FieldContent] },
	},
	{
		Value: "wifi",
		Label: "WiFi",
		Fields: []Field{
			{Name: FieldSSID, Prompt: "Send SSID"},
			{Name: FieldPassword, Prompt: "Send Password (or - for open)", Optional: true},
			{Name: FieldSecurity, Prompt: "Choose security:", Choice: true},
		},
		build: buildWiFi,
	},
	{
		Value: "email",
		Label: "Email",
		Fields: []Field{
			{Name: FieldTo, Prompt: "Send 'To' email"},
			{Name: FieldSubject, Prompt: "Enter Subject (or - skip)", Optional: true},
			{Name: FieldBody, Prompt: "Enter Body (or - skip)", Optional: true},
		},
		build: buildEmail,
	},
	{
		Value:  "phone",
		Label:  "Phone",
		Fields: []Field{{Name: FieldPhone, Prompt: "Send phone (+country)"}},
		build:  func(v map[string]string) string { return "tel:" + v[FieldPhone] },
	},
	{
		Value: "whatsapp",
		Label: "WhatsApp",
		Fields: []Field{
			{Name: FieldNumber, Prompt: "Send phone (no +)"},
			{Name: FieldMessage, Prompt: "Enter message (or - skip)", Optional: true},
		},
		build: buildWhatsApp,
	},
	{
		Value: "upi",
		Label: "UPI",
		Fields: []Field{
			{Name: FieldPayeeID, Prompt: "Send UPI ID"},
			{Name: FieldPayee, Prompt: "Enter payee name (or - skip)", Optional: true},
			{Name: FieldAmount, Prompt: "Enter amount (or - skip)", Optional: true},
			{Name: FieldNote, Prompt: "Enter note (or - skip)", Optional: true},
		},
		build: buildUPI,
	},
	{
		Value: "message",
		Label: "SMS",
		Fields: []Field{
			{Name: FieldPhone, Prompt: "Send phone for SMS"},
			{Name: FieldBody, Prompt: "Enter SMS text"},
		},
		build: func(v map[string]string) string {
			return fmt.Sprintf("SMSTO:%s:%s", v[FieldPhone], v[FieldBody])
		},
	},
}

// QRTypes returns the payload kinds in picker order.
func QRTypes() []QRType {
	return append([]QRType(nil), qrTypes...)
}

// LookupQRType finds a type by its callback value.
func LookupQRType(value string) (QRType, bool) {
	for _, t := range qrTypes {
		if t.Value == value {
			return t, true
		}
	}
	return QRType{}, false
}

// Field returns the named field of t.
func (t QRType) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Next returns the first field not yet present in collected.
func (t QRType) Next(collected map[string]string) (Field, bool) {
	for _, f := range t.Fields {
		if _, ok := collected[f.Name]; !ok {
			return f, true
		}
	}
	return Field{}, false
}

// Payload assembles the encoded string once every field is collected.
func (t QRType) Payload(collected map[string]string) (string, error) {
	if f, ok := t.Next(collected); ok {
		return "", fmt.Errorf("flow: %s payload missing field %s", t.Value, f.Name)
	}
	return t.build(collected), nil
}

var wifiEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	`:`, `\:`,
	`"`, `\"`,
)

func buildWiFi(v map[string]string) string {
	sec := strings.ToUpper(v[FieldSecurity])
	if sec == SecurityNone {
		sec = ""
	}
	return fmt.Sprintf("WIFI:T:%s;S:%s;P:%s;;", sec, wifiEscaper.Replace(v[FieldSSID]), wifiEscaper.Replace(v[FieldPassword]))
}

func buildEmail(v map[string]string) string {
	out := "mailto:" + v[FieldTo]
	var params []string
	if s := v[FieldSubject]; s != "" {
		params = append(params, "subject="+quote(s))
	}
	if b := v[FieldBody]; b != "" {
		params = append(params, "body="+quote(b))
	}
	if len(params) > 0 {
		out += "?" + strings.Join(params, "&")
	}
	return out
}

func buildWhatsApp(v map[string]string) string {
	out := "https://wa.me/" + v[FieldNumber]
	if m := v[FieldMessage]; m != "" {
		out += "?text=" + quote(m)
	}
	return out
}

func buildUPI(v map[string]string) string {
	out := "upi://pay?pa=" + quote(v[FieldPayeeID])
	for _, k := range []string{FieldPayee, FieldAmount, FieldNote} {
		if val := v[k]; val != "" {
			out += "&" + k + "=" + quote(val)
		}
	}
	return out
}

// quote percent-encodes s with spaces as %20.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
