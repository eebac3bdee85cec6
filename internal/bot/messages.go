package bot

const (
	surpriseButton = "🎲 Surprise me"

	msgGreeting       = "Hi! I'm your guide to the world of music. Buckle up, there are discoveries ahead. Press \"Surprise me\" for a random album."
	msgEmptyCatalog   = "The catalog has no albums yet."
	msgTryAgain       = "Something went wrong. Please try again later."
	msgUnknownText    = "I didn't get that. Send /help to see what I can do."
	msgUnknownCommand = "Unknown command. Send /help to see what I can do."
	msgUnexpectedFile = "I wasn't expecting a file. Admins can submit albums with /add."
	msgAccessDenied   = "This command is for admins only."
	msgStaleButton    = "This button is no longer active."
	msgRateLimited    = "Too many requests, please slow down a little."
	msgRoleUsage      = "Usage: %s <user_id>"
	msgUserNotFound   = "No user with id %d has talked to the bot yet."
	msgRoleChanged    = "User %d is now %s."
	msgSelfDemote     = "You can't demote yourself."
	msgHelpHeader     = "Available commands:"
	msgCatalogSize    = "Albums in the catalog: %d"
)
