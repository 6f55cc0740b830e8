package conftools

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const Redacted = "***REDACTED***"

func decoderHook(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
	dc.ErrorUnused = true
}

// Load resolves cfg from flags, environment, the configured file and flag defaults, in that order.
// A missing config file is only an error when one was named explicitly.
func Load(v *viper.Viper, flags *flag.FlagSet, cfg interface{}) error {
	var notFound viper.ConfigFileNotFoundError

	err := v.ReadInConfig()
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config file: %w", err)
	}

	err = v.BindPFlags(flags)
	if err != nil {
		return err
	}

	err = v.Unmarshal(cfg, decoderHook)
	if err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}

	return nil
}

// Format returns a human-readable printout of all configuration options, except secret stuff.
func Format(v *viper.Viper, disallowedKeys []string) []string {
	ok := func(key string) bool {
		for _, forbiddenKey := range disallowedKeys {
			if forbiddenKey == key {
				return false
			}
		}
		return true
	}

	var keys sort.StringSlice = v.AllKeys()

	printed := make([]string, 0, len(keys))

	keys.Sort()
	for _, key := range keys {
		switch {
		case !ok(key) && v.GetString(key) != "":
			printed = append(printed, fmt.Sprintf("%s: %s", key, Redacted))
		default:
			printed = append(printed, fmt.Sprintf("%s: %v", key, v.Get(key)))
		}
	}

	return printed
}
