// Package messages decides whether server-pushed login notifications are
// shown to this client, based on version constraints and one-time show
// history.
package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drewster99/FishIdentifierCam/internal/dtos"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// Gate evaluates messages for one app version. DebugBuild admits
// debug-typed messages; release builds drop them outright.
type Gate struct {
	AppVersion string
	DebugBuild bool
}

// ShouldShow reports whether msg should be displayed, mutating store as
// a side effect:
//
//   - debug message on a release build: false, no mutation.
//   - failed version check: the id is marked shown even though nothing
//     was displayed ("don't ask again for this version mismatch") and the
//     result is false. Known quirk, preserved deliberately: a later app
//     version that would satisfy the constraint will never see the
//     message.
//   - not one-time: true, no mutation.
//   - one-time: true exactly once per store.
func (g Gate) ShouldShow(msg dtos.Message, store SeenStore) bool {
	if strings.EqualFold(msg.Type, "debug") && !g.DebugBuild {
		utils.Logger.Debugf("Message %s is marked as debug only, not showing in release build", msg.ID)
		return false
	}

	if !g.passesVersionCheck(msg) {
		utils.Logger.Debugf("Message %s - version check failed - skipping", msg.ID)
		if !store.Contains(msg.ID) {
			store.Add(msg.ID)
		}
		return false
	}

	if !msg.IsOneTime {
		return true
	}

	if store.Contains(msg.ID) {
		utils.Logger.Debugf("Message %s previously shown - ignoring", msg.ID)
		return false
	}
	store.Add(msg.ID)
	return true
}

func (g Gate) passesVersionCheck(msg dtos.Message) bool {
	constraint := msg.AppVersion
	if len(constraint) < 2 {
		utils.Logger.Debugf("Message %s app_version too short: %q - skipping", msg.ID, constraint)
		return false
	}

	actual := ComparableVersionString(g.AppVersion)
	wanted := ComparableVersionString(constraint[1:])

	switch constraint[0] {
	case '=':
		return actual == wanted
	case '<':
		return actual < wanted
	case '>':
		return actual > wanted
	default:
		utils.Logger.Debugf("Message %s unknown version comparison type %q - skipping", msg.ID, constraint[0])
		return false
	}
}

// ComparableVersionString normalizes a version like "1.0(16)" into
// "0001.0000.0016": parens become dot separators and purely numeric
// components are zero-padded to 4 digits, so plain lexicographic string
// comparison orders numeric components numerically. Non-numeric
// components pass through unchanged.
func ComparableVersionString(v string) string {
	v = strings.ReplaceAll(v, ")", "")
	v = strings.ReplaceAll(v, "(", ".")

	parts := strings.Split(v, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, fmt.Sprintf("%04d", n))
		} else {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
