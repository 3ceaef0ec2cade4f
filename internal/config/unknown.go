package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds "did you mean?" suggestions.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys per section.
var knownKeys = map[string][]string{
	"auth":     {"client_secrets_file", "identity", "scopes", "token_dir"},
	"drive":    {"chunk_size", "page_size", "request_timeout", "user_agent"},
	"logging":  {"log_format", "log_level"},
	"notes":    {"path"},
	"patients": {"backend", "db_path"},
	"server":   {"listen_addr", "transport"},
}

// knownSections is sorted for deterministic suggestions when two candidates
// have the same edit distance.
var knownSections = func() []string {
	sections := make([]string, 0, len(knownKeys))
	for s := range knownKeys {
		sections = append(sections, s)
	}

	sort.Strings(sections)

	return sections
}()

// sectionOf finds the section a bare key belongs to, for keys written at the
// top level by mistake.
func sectionOf(key string) string {
	for _, section := range knownSections {
		for _, k := range knownKeys[section] {
			if k == key {
				return section
			}
		}
	}

	return ""
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool)

	for _, key := range undecoded {
		err := unknownKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if len(key) == 1 {
			if home := sectionOf(section); home != "" {
				return fmt.Errorf("unknown config key %q: did you mean %q under [%s]?", section, section, home)
			}
		}

		if suggestion := closestMatch(section, knownSections); suggestion != "" {
			return fmt.Errorf("unknown config section %q: did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if len(key) < 2 {
		return fmt.Errorf("config key %q must be a section", section)
	}

	name := strings.Join(key[1:], ".")

	if suggestion := closestMatch(key[1], keys); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", name, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", name, section)
}

// closestMatch returns the known name nearest to unknown, or "" when none is
// within maxLevenshteinDistance. Ties go to the earlier entry.
func closestMatch(unknown string, known []string) string {
	best, bestDist := "", maxLevenshteinDistance+1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			best, bestDist = k, d
		}
	}

	return best
}

// levenshtein is the rune edit distance between a and b, kept in one row.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1

		for j, cb := range rb {
			sub := diag
			if ca != cb {
				sub++
			}

			diag = row[j+1]
			row[j+1] = min(row[j+1]+1, row[j]+1, sub)
		}
	}

	return row[len(rb)]
}
