// Package keyboard builds inline keyboards whose buttons carry raw
// namespace|value callback data.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button.
type InlineBtn struct {
	Text string
	Data string
}

// InlineButtonsRows lays rows out top to bottom. Empty rows are dropped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}
