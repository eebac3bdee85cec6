// Package keyboard builds the reply and inline keyboards the bot sends.
package keyboard

import tele "gopkg.in/telebot.v4"

const cancelText = "❌ Cancel"

// LinkBtn is an inline button that opens URL.
type LinkBtn struct {
	Text string
	URL  string
}

// ReplyButtons returns a resized reply keyboard, one row per slice.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	var kb []tele.Row
	for _, labels := range rows {
		var row tele.Row
		for _, l := range labels {
			row = append(row, m.Text(l))
		}
		kb = append(kb, row)
	}
	m.Reply(kb...)
	return m
}

// LinkRow lays the buttons with a URL out in a single inline row.
// It returns nil if no button has one.
func LinkRow(buttons ...LinkBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var row tele.Row
	for _, b := range buttons {
		if b.URL != "" {
			row = append(row, m.URL(b.Text, b.URL))
		}
	}
	if len(row) == 0 {
		return nil
	}
	m.Inline(row)
	return m
}

// CancelMarkup is an inline keyboard holding one cancel button whose
// callback data is unique|payload.
func CancelMarkup(unique, payload string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data(cancelText, unique, payload)))
	return m
}
