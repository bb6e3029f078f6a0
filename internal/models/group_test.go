package models

import "testing"

func TestGroupNameOrderIndependent(t *testing.T) {
	tests := []struct {
		caller, other string
		want          string
	}{
		{"anna", "todd", "anna-todd"},
		{"todd", "anna", "anna-todd"},
		{"lisa", "lisa2", "lisa-lisa2"},
		{"Todd", "anna", "Todd-anna"}, // ordinal comparison, uppercase sorts first
	}

	for _, tt := range tests {
		if got := GroupName(tt.caller, tt.other); got != tt.want {
			t.Errorf("GroupName(%q, %q) = %q, want %q", tt.caller, tt.other, got, tt.want)
		}
		if GroupName(tt.caller, tt.other) != GroupName(tt.other, tt.caller) {
			t.Errorf("GroupName(%q, %q) is not order independent", tt.caller, tt.other)
		}
	}
}

func TestGroupHasMember(t *testing.T) {
	group := &Group{
		Name: "anna-todd",
		Connections: []*Connection{
			{ConnectionID: "c1", Username: "anna"},
		},
	}

	if !group.HasMember("anna") {
		t.Error("anna should be a member")
	}
	if group.HasMember("todd") {
		t.Error("todd should not be a member")
	}

	var nilGroup *Group
	if nilGroup.HasMember("anna") {
		t.Error("nil group should have no members")
	}
}
