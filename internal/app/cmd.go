package app

// Command is the mode the binary runs in.
type Command string

const (
	// CommandServe starts the HTTP API.
	CommandServe Command = "serve"
	// CommandMigrate applies pending database migrations and exits.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck calls /health on the local port. Used by
	// container health checks.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand reads the subcommand from args. Empty or unknown
// arguments run the server.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
