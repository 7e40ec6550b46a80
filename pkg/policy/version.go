package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// BumpVersion increments a three-component semantic version string. A major
// bump resets minor and patch to zero, a minor bump resets patch, and a
// patch bump (the default) increments only the last component.
func BumpVersion(version, bump string) (string, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid version %q: want three components", version)
	}

	components := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return "", fmt.Errorf("invalid version %q: %w", version, err)
		}
		components[i] = n
	}

	switch bump {
	case "major":
		components[0]++
		components[1] = 0
		components[2] = 0
	case "minor":
		components[1]++
		components[2] = 0
	case "patch", "":
		components[2]++
	default:
		return "", fmt.Errorf("unknown version bump %q", bump)
	}

	return fmt.Sprintf("%d.%d.%d", components[0], components[1], components[2]), nil
}
