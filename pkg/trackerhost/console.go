package trackerhost

import (
	"github.com/go-slimevr/trackerhub/pkg/logger"
)

// Console forwards device-originated serial text to the structured
// logger rather than a bare stdout print, matching the ambient logging
// stack every other component in this repository uses.
type Console struct {
	log logger.Logger
}

// NewConsole returns a Console that logs each line at info level.
func NewConsole(log logger.Logger) *Console {
	return &Console{log: log.WithComponent("console")}
}

func (c *Console) WriteLine(line string) {
	c.log.Info().Str("serial", line).Msg("device serial output")
}
