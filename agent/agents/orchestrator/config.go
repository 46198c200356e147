package orchestrator

type Config struct {
	MaxCalls int `envconfig:"MAX_CALLS" split_words:"true" default:"25"`
	MaxTurns int `envconfig:"MAX_TURNS" split_words:"true" default:"10"`
}

func (c Config) withDefaults() Config {
	if c.MaxCalls <= 0 {
		c.MaxCalls = 25
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 10
	}
	return c
}
