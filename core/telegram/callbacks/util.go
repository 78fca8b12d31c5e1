package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates the namespace from the value in callback data.
const Sep = "|"

// Encode builds raw callback data in the namespace|value form.
func Encode(namespace, value string) string {
	return namespace + Sep + value
}

// Split parses namespace|value data. Telebot prefixes data built through
// ReplyMarkup.Data with a form feed, which is dropped here.
func Split(data string) (string, string) {
	raw := strings.TrimPrefix(data, "\f")
	parts := strings.SplitN(raw, Sep, 2)
	ns := strings.TrimSpace(parts[0])
	value := ""
	if len(parts) == 2 {
		value = parts[1]
	}
	return ns, value
}

// ParseCallbackData returns the namespace and value carried by cb.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return Split(cb.Data)
}

// CallbackKey returns the namespace of the current callback.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// CallbackPayload returns the value after the separator.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}
