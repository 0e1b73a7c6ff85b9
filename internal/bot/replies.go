package bot

// Fixed reply texts. Command replies are static; chat replies come from the
// completion provider.
const (
	replyWelcome = "Hey! I'm your AI assistant.\n" +
		"Use /role to set the role of the AI,\n" +
		"/reset to clear the role setting,\n" +
		"/history to view the conversation history,\n" +
		"/clear to clear the conversation history."

	replyRolePrompt     = "Please, write what role should AI refer to"
	replyRoleWasReset   = "Role reset completed"
	replyHistoryCleared = "Conversation history cleared."
	replyNoHistory      = "No conversation history yet."
	replyNoResponse     = "I don't have a response for that. Please try again."
	replyError          = "Sorry, I encountered an error processing your request. Please try again."

	historyHeader = "Conversation History:\n\n"
)
