package ui

// Header renders a section header.
func Header(title string) string {
	return StyleHeader.Render(title) + "\n"
}

// Success renders a success message.
func Success(message string) string {
	return StyleSuccess.Render("✓ " + message)
}

// Warning renders a warning message.
func Warning(message string) string {
	return StyleWarning.Render("! " + message)
}

// Error renders an error message.
func Error(message string) string {
	return StyleError.Render("✗ " + message)
}

// StateBadge colors an agent coordination state for table output.
func StateBadge(state string) string {
	switch state {
	case "IDLE":
		return StyleDim.Render(state)
	case "WORKING", "EXECUTING_DECISION":
		return StyleGreen.Render(state)
	case "SEEKING_HELP", "NEGOTIATING":
		return StyleYellow.Render(state)
	case "WAITING_DIRECTOR":
		return StyleOrange.Render(state)
	default:
		return state
	}
}
