package submission

import "fmt"

const (
	msgDenied        = "You don't have permission to add albums."
	msgAskTitle      = "Let's add a new album. Send the album title:"
	msgEmptyText     = "Please send a non-empty text message."
	msgBadYear       = "Please enter a valid year between 1 and 9999, for example 1980."
	msgDuplicate     = "Looks like this album is already in the catalog. Submission cancelled."
	msgBadCover      = "Please send the cover as a photo or an image file (JPEG or PNG)."
	msgCoverTooLarge = "That image is too large. Please send a smaller file, or send it as a photo so Telegram compresses it."
	msgAskStreaming  = `Now send a link to the album on a streaming service, or "none" to skip:`
	msgCommitted     = "The album has been added to the catalog!"
	msgCancelled     = "Album submission cancelled."
	msgNothingActive = "There is no submission in progress."
	msgRetry         = "Something went wrong on our side. Please send that again."
)

func msgAskArtist(d Draft) string {
	return fmt.Sprintf("Great! Now send the artist of %q:", d.Title)
}

func msgAskLabel(d Draft) string {
	return fmt.Sprintf("Good. Which label released %q by %s?", d.Title, d.Artist)
}

func msgAskYear(d Draft) string {
	return fmt.Sprintf("What year was %q by %s released?", d.Title, d.Artist)
}

func msgAskCover(d Draft) string {
	return fmt.Sprintf("Now send the cover of %q by %s as a photo or image file.", d.Title, d.Artist)
}

const msgAskItunes = `Cover saved! Send the Apple Music link for the album, or "none" to skip:`
