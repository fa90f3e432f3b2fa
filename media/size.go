package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var sizeRegexp = regexp.MustCompile(`^(\d+)([kmgt])?$`)

// Size is a byte amount configurable as "500", "10k", "50m", "2g" or "1t".
type Size int64

const (
	B  Size = 1
	KB      = B << 10
	MB      = KB << 10
	GB      = MB << 10
	TB      = GB << 10
)

var sizeUnits = map[string]Size{
	"k": KB,
	"m": MB,
	"g": GB,
	"t": TB,
}

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	match := sizeRegexp.FindStringSubmatch(strings.ToLower(node.Value))
	if len(match) < 2 {
		return errors.Errorf("expected expression matching %s", sizeRegexp.String())
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return err
	}

	unit := B
	if len(match) == 3 && match[2] != "" {
		unit = sizeUnits[match[2]]
	}

	*s = unit * Size(amount)
	return nil
}

func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s Size) String() string {
	switch {
	case s >= TB:
		return fmt.Sprintf("%dt", s/TB)
	case s >= GB:
		return fmt.Sprintf("%dg", s/GB)
	case s >= MB:
		return fmt.Sprintf("%dm", s/MB)
	case s >= KB:
		return fmt.Sprintf("%dk", s/KB)
	default:
		return strconv.FormatInt(int64(s), 10)
	}
}
