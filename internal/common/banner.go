package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective service settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Quill", CurrentBuild().String())

	logger.Info().
		Str("environment", config.Environment).
		Str("address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("job_store", config.Jobs.Store).
		Str("sources", config.Sources.Type).
		Str("artifacts", config.Storage.Artifacts.Dir).
		Bool("events", config.Events.NATSURL != "").
		Msg("Quill starting")
}
