package models

import "strings"

// Connection is the ephemeral record of one live conversation-channel
// session. It exists only while the websocket is open.
type Connection struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
}

// Group is the named broadcast scope for one two-party conversation. A group
// may exist with no connections when both participants are offline.
type Group struct {
	Name        string        `json:"name"`
	Connections []*Connection `json:"connections"`
}

// HasMember reports whether any live connection in the group belongs to the
// given username.
func (g *Group) HasMember(username string) bool {
	if g == nil {
		return false
	}
	for _, c := range g.Connections {
		if c.Username == username {
			return true
		}
	}
	return false
}

// GroupName derives the conversation group name for two participants. The
// comparison is case-sensitive and the lower name goes first, so both sides
// compute the same name regardless of who initiates.
func GroupName(caller, other string) string {
	if strings.Compare(caller, other) < 0 {
		return caller + "-" + other
	}
	return other + "-" + caller
}
