package keyboard

import "testing"

func TestInlineButtonsRowsRawData(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Skip (random)", Data: "alias|skip"}, {Text: "Enter alias", Data: "alias|manual"}},
		nil,
		[]InlineBtn{{Text: "Cancel", Data: "bc|cancel"}},
	)
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[0][1].Data; got != "alias|manual" {
		t.Fatalf("data = %q", got)
	}
}

func TestInlineButtonsRowsEmpty(t *testing.T) {
	m := InlineButtonsRows(nil, []InlineBtn{})
	if len(m.InlineKeyboard) != 0 {
		t.Fatalf("keyboard = %+v", m.InlineKeyboard)
	}
}
