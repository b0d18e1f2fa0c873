// Package topic provides MQTT topic name and filter handling for a client:
// validation of names it publishes to and filters it subscribes with, wildcard
// matching of incoming topics against filters, and building prefixed bridge topics.
// MQTT 3.1.1 Section 4.7
package topic

import (
	"strings"
)

const (
	// Separator is the topic level separator.
	Separator = '/'

	// MultiWildcard matches any number of levels (must be last).
	MultiWildcard = '#'

	// SingleWildcard matches exactly one level.
	SingleWildcard = '+'

	// SysPrefix is the prefix for system topics.
	SysPrefix = '$'

	maxLength = 65535
)

// ValidateName validates a topic name (no wildcards allowed).
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrEmptyTopic
	}
	if len(name) > maxLength {
		return ErrTopicTooLong
	}

	for i := 0; i < len(name); i++ {
		switch name[i] {
		case MultiWildcard, SingleWildcard:
			return ErrWildcardInName
		case 0:
			return ErrNullCharacter
		}
	}
	return nil
}

// ValidateFilter validates a topic filter (wildcards allowed).
func ValidateFilter(filter string) error {
	if len(filter) == 0 {
		return ErrEmptyTopic
	}
	if len(filter) > maxLength {
		return ErrTopicTooLong
	}

	rest := filter
	for {
		level, tail, more := strings.Cut(rest, string(Separator))

		if strings.IndexByte(level, 0) >= 0 {
			return ErrNullCharacter
		}
		// # must be alone in its level and be the last level
		if strings.IndexByte(level, MultiWildcard) >= 0 && (level != "#" || more) {
			return ErrInvalidMultiWildcard
		}
		// + must be alone in its level
		if strings.IndexByte(level, SingleWildcard) >= 0 && level != "+" {
			return ErrInvalidSingleWildcard
		}

		if !more {
			return nil
		}
		rest = tail
	}
}

// Match reports whether a topic name matches a topic filter.
// Names starting with $ are not matched by filters starting with a wildcard.
func Match(filter, name string) bool {
	if len(filter) == 0 || len(name) == 0 {
		return false
	}
	if name[0] == SysPrefix && (filter[0] == MultiWildcard || filter[0] == SingleWildcard) {
		return false
	}

	for {
		fl, frest, fmore := strings.Cut(filter, string(Separator))

		// Multi-level wildcard matches the parent level and everything below it
		if fl == "#" {
			return true
		}

		nl, nrest, nmore := strings.Cut(name, string(Separator))
		if fl != "+" && fl != nl {
			return false
		}

		switch {
		case !fmore && !nmore:
			return true
		case !nmore:
			// "a/#" matches "a"
			return frest == "#"
		case !fmore:
			return false
		}
		filter, name = frest, nrest
	}
}

// Levels splits a topic into its constituent levels.
func Levels(topic string) []string {
	return strings.Split(topic, string(Separator))
}

// HasWildcard returns true if the filter contains any wildcard characters.
func HasWildcard(filter string) bool {
	return strings.ContainsAny(filter, "#+")
}

// IsSysTopic returns true if the topic name starts with $.
func IsSysTopic(name string) bool {
	return len(name) > 0 && name[0] == SysPrefix
}

// Join appends path to prefix with exactly one separator between them.
// An empty prefix yields path unchanged.
func Join(prefix, path string) string {
	prefix = strings.TrimRight(prefix, string(Separator))
	path = strings.TrimLeft(path, string(Separator))
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + string(Separator) + path
	}
}
