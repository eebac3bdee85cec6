package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Payload returns the data part of the callback, without the "\funique|" prefix.
func Payload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return strings.TrimSpace(cb.Data)
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	if _, rest, ok := strings.Cut(raw, "|"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// PayloadInt64 parses the callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(Payload(c), 10, 64)
}

// OwnedBy reports whether the callback payload carries the id of the user who
// pressed the button. Buttons minted for one user stay inert for others.
func OwnedBy(c tele.Context) bool {
	if c.Sender() == nil {
		return false
	}
	id, err := PayloadInt64(c)
	return err == nil && id == c.Sender().ID
}
