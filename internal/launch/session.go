package launch

import (
	"strings"

	"github.com/google/uuid"
)

// OfflineSession builds a session usable without any authentication flow.
// The UUID is derived deterministically from the player name so repeated
// offline launches keep the same identity.
func OfflineSession(name string) Session {
	id := uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
	return Session{
		PlayerName:  name,
		UUID:        strings.ReplaceAll(id.String(), "-", ""),
		AccessToken: "0",
		UserType:    "legacy",
	}
}
