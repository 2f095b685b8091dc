package dispatch

// Fixed user-facing reply texts. Replies for non-English users are translated
// in post-processing, so these stay English at the source.
const (
	welcomeMessage = "Welcome to Farm Advisor! 🌾\n" +
		"I send weather alerts and farming tips for your city.\n\n" +
		"Choose your language:\n" +
		"1 - हिंदी (Hindi)\n" +
		"2 - मराठी (Marathi)\n" +
		"3 - English\n\n" +
		"Reply with a number, or send 'help' to see all commands."

	helpMessage = "Here is what I can do:\n" +
		"- subscribe <city> - get weather alerts for your city\n" +
		"- unsubscribe - stop alerts\n" +
		"- weather <city> - current weather and farming tips\n" +
		"- log <activity> - note a farm activity\n" +
		"- view log - list your activity notes\n" +
		"- clear log - empty your activity notes\n" +
		"- status - your city, language and subscription\n" +
		"- 1 / 2 / 3 - switch language (हिंदी / मराठी / English)"

	subscribeUsageMessage = "Please include a city, e.g. subscribe Mumbai."

	subscribeConfirmFormat = "You are subscribed to weather alerts for %s. ✅\n" +
		"I will warn you about: extreme heat, cold snaps, strong wind, heavy rain and storms."

	unsubscribeMessage = "You are unsubscribed. You will no longer receive weather alerts. " +
		"Send subscribe <city> anytime to start again."

	weatherUsageMessage = "Please include a city, e.g. weather Mumbai - or subscribe <city> first so I remember yours."

	weatherFailureMessage = "Sorry, I could not fetch the weather right now. Please try again later."

	tipsFallbackMessage = "Tip: water crops in the early morning or late evening to reduce evaporation."

	logUsageMessage = "Please include what you did, e.g. log sowed wheat in the north field."

	logConfirmMessage = "Noted. ✅ Send 'view log' to see your activities."

	logEmptyMessage = "Nothing logged yet. Send log <activity> to add a note."

	logClearedMessage = "Your activity log has been cleared."

	languageConfirmFormat = "Language set to %s."

	voiceApologyMessage = "Sorry, I could not process your voice message. Please try sending it as text."
)
