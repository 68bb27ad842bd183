package config

import (
	"fmt"
	"os"
	"strings"
)

// Credentials collects the API key pool for a provider from the environment.
// It reads <NAME>_API_KEY first, then <NAME>_API_KEY_1, _2 and so on until the
// first gap. Keys stay out of config files on purpose.
func Credentials(name string) []string {
	base := strings.ToUpper(strings.TrimSpace(name)) + "_API_KEY"
	var keys []string
	if v := strings.TrimSpace(os.Getenv(base)); v != "" {
		keys = append(keys, v)
	}
	for i := 1; ; i++ {
		v := strings.TrimSpace(os.Getenv(fmt.Sprintf("%s_%d", base, i)))
		if v == "" {
			break
		}
		keys = append(keys, v)
	}
	return keys
}
