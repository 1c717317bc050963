package domain

import "testing"

func TestPrivileged(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want bool
	}{
		{"plain viewer", Message{Platform: PlatformTwitch, UserID: "1"}, false},
		{"moderator is not privileged", Message{IsPlatformMod: true}, false},
		{"vip is not privileged", Message{IsPlatformVip: true}, false},
		{"broadcaster", Message{IsPlatformOwner: true}, true},
		{"admin console", Message{IsAdminOrigin: true}, true},
	}
	for _, tc := range cases {
		if got := tc.msg.Privileged(); got != tc.want {
			t.Errorf("%s: Privileged() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestUserKeyScopesByPlatform(t *testing.T) {
	twitch := Message{Platform: PlatformTwitch, UserID: "42"}
	kick := Message{Platform: PlatformKick, UserID: "42"}
	if twitch.UserKey() == kick.UserKey() {
		t.Fatal("same numeric id on different platforms must not collide")
	}
	if twitch.UserKey() != "twitch:42" {
		t.Fatalf("UserKey() = %q, want twitch:42", twitch.UserKey())
	}
}
