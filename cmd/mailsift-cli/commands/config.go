package commands

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the optional file based configuration. Everything in here has
// a usable zero value, the file only matters for hint store access and for
// tuning the suggestion corpus.
type Config struct {
	HintStore struct {
		// DSN is a lib/pq connection string, empty disables the hint store
		DSN string `toml:"dsn"`
	} `toml:"hintStore"`
	Suggest struct {
		// Domains replaces the built-in corpus used for alternative
		// domain suggestions
		Domains []string `toml:"domains"`
	} `toml:"suggest"`
}

func NewConfig(fileName string) (Config, error) {
	c := Config{}

	if fileName == "" {
		return c, nil
	}

	b, err := os.ReadFile(fileName)
	if err != nil {
		return c, fmt.Errorf("unable to open %q, reason: %w", fileName, err)
	}

	_, err = toml.Decode(string(b), &c)
	if err != nil {
		return c, fmt.Errorf("unable to unmarshal %q, reason: %w", fileName, err)
	}

	return c, nil
}

// defaultSuggestDomains is the corpus used for "did you mean" alternatives
// when the configuration doesn't bring its own
var defaultSuggestDomains = []string{
	"gmail.com",
	"googlemail.com",
	"outlook.com",
	"hotmail.com",
	"live.com",
	"yahoo.com",
	"icloud.com",
	"aol.com",
	"protonmail.com",
	"proton.me",
	"gmx.net",
	"gmx.de",
	"web.de",
	"mail.com",
	"zoho.com",
}
