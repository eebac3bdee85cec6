package bot

import (
	"context"
	"errors"
	"fmt"
	"io"

	tghelpers "github.com/m3rciful/tunerover/core/telegram/helpers"
	"github.com/m3rciful/tunerover/internal/submission"

	tele "gopkg.in/telebot.v4"
)

// Active reports whether the user is mid-submission, so the message router
// hands plain input to Handle.
func (b *Bot) Active(ctx context.Context, userID int64) bool {
	return b.subs.Active(ctx, userID)
}

// Handle feeds a text, photo or document message into the submission dialogue.
func (b *Bot) Handle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := b.subs.Handle(ctx, toMessage(c))
	return errors.Join(err, b.sendReply(c, reply))
}

func toMessage(c tele.Context) submission.Message {
	msg := submission.Message{UserID: senderID(c), Text: c.Text()}
	m := c.Message()
	if m == nil {
		return msg
	}
	switch {
	case m.Photo != nil:
		msg.Image = telegramFile{files: c.Bot(), file: m.Photo.File}
	case m.Document != nil:
		msg.Image = telegramFile{files: c.Bot(), file: m.Document.File}
	}
	return msg
}

type fileDownloader interface {
	File(file *tele.File) (io.ReadCloser, error)
}

// telegramFile downloads an uploaded file only when the dialogue asks for it.
type telegramFile struct {
	files fileDownloader
	file  tele.File
}

func (f telegramFile) Open(context.Context) (io.ReadCloser, error) {
	rc, err := f.files.File(&f.file)
	if err != nil {
		return nil, fmt.Errorf("bot: download file %s: %w", f.file.FileID, err)
	}
	return rc, nil
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
