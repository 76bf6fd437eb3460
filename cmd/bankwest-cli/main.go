package main

import (
	_ "time/tzdata"

	"bankwest-session/cmd/bankwest-cli/commands"
	"bankwest-session/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
