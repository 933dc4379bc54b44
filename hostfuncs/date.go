package hostfuncs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDateFormat is returned for a date pattern outside the supported subset.
var ErrDateFormat = errors.New("unsupported date pattern")

// ParseDate parses value with an LDML pattern such as "yyyy-MM-dd HH:mm".
// tz names an IANA zone; empty or "current" means the local zone. Month and
// weekday names are English whatever locale says.
func ParseDate(value, pattern, locale, tz string) (time.Time, error) {
	layout, err := ldmlLayout(pattern)
	if err != nil {
		return time.Time{}, err
	}
	loc := time.Local
	switch tz {
	case "", "current":
	default:
		if loc, err = time.LoadLocation(tz); err != nil {
			return time.Time{}, err
		}
	}
	return time.ParseInLocation(layout, strings.TrimSpace(value), loc)
}

// ldmlLayout converts an LDML date pattern into a time layout.
func ldmlLayout(pattern string) (string, error) {
	var b strings.Builder
	r := []rune(pattern)
	for i := 0; i < len(r); {
		c := r[i]
		if c == '\'' {
			i++
			if i < len(r) && r[i] == '\'' {
				b.WriteRune('\'')
				i++
				continue
			}
			for i < len(r) {
				if r[i] == '\'' {
					if i+1 < len(r) && r[i+1] == '\'' {
						b.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteRune(r[i])
				i++
			}
			continue
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			b.WriteRune(c)
			i++
			continue
		}

		n := 1
		for i+n < len(r) && r[i+n] == c {
			n++
		}
		tok, err := ldmlField(c, n)
		if err != nil {
			return "", err
		}
		b.WriteString(tok)
		i += n
	}
	return b.String(), nil
}

func ldmlField(c rune, n int) (string, error) {
	pick := func(opts ...string) string {
		if n > len(opts) {
			n = len(opts)
		}
		return opts[n-1]
	}
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M', 'L':
		return pick("1", "01", "Jan", "January"), nil
	case 'd':
		return pick("2", "02"), nil
	case 'D':
		return pick("__2", "__2", "002"), nil
	case 'E':
		return pick("Mon", "Mon", "Mon", "Monday"), nil
	case 'a':
		return "PM", nil
	case 'H', 'k':
		return "15", nil
	case 'h', 'K':
		return pick("3", "03"), nil
	case 'm':
		return pick("4", "04"), nil
	case 's':
		return pick("5", "05"), nil
	case 'S':
		return strings.Repeat("0", n), nil
	case 'Z':
		return pick("-0700", "-0700", "-0700", "-07:00", "Z07:00"), nil
	case 'X':
		return pick("Z07", "Z0700", "Z07:00"), nil
	case 'x':
		return pick("-07", "-0700", "-07:00"), nil
	case 'z':
		return "MST", nil
	}
	return "", fmt.Errorf("%w: field %q", ErrDateFormat, string(c))
}
