package tgtext

// MessageLimit is Telegram's message text size limit in characters.
// Messages at or above this length must be split before sending.
const MessageLimit = 4096
