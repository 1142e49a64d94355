package identity

import (
	"strconv"
	"testing"
)

func TestCanonicalize_Steam2(t *testing.T) {
	id, isBot, err := Canonicalize("STEAM_1:0:111", "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isBot {
		t.Error("STEAM_1 token should not be treated as a bot")
	}
	want := strconv.FormatInt(steam64Base+2*111, 10)
	if id != want {
		t.Errorf("id = %q, want %q", id, want)
	}
}

func TestCanonicalize_Steam3(t *testing.T) {
	id, isBot, err := Canonicalize("[U:1:222]", "Bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isBot {
		t.Error("Steam3 token should not be treated as a bot")
	}
	want := strconv.FormatInt(steam64Base+222, 10)
	if id != want {
		t.Errorf("id = %q, want %q", id, want)
	}
}

func TestCanonicalize_Steam64Passthrough(t *testing.T) {
	id, isBot, err := Canonicalize("76561197960330903", "Carol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isBot {
		t.Error("17-digit token should not be treated as a bot")
	}
	if id != "76561197960330903" {
		t.Errorf("id = %q, want passthrough", id)
	}
}

func TestCanonicalize_Bot(t *testing.T) {
	id, isBot, err := Canonicalize("BOT", "Crazy Ivan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isBot {
		t.Error("BOT token should be treated as a bot")
	}
	if id != "BOT_Crazy_Ivan" {
		t.Errorf("id = %q, want BOT_Crazy_Ivan", id)
	}
}

func TestCanonicalize_BotPrefixed(t *testing.T) {
	id, isBot, err := Canonicalize("BOT_easy", "Easy Bot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isBot {
		t.Error("BOT_ prefixed token should be treated as a bot")
	}
	if id != "BOT_Easy_Bot" {
		t.Errorf("id = %q, want BOT_Easy_Bot", id)
	}
}

func TestCanonicalize_Unrecognized(t *testing.T) {
	if _, _, err := Canonicalize("garbage-token", "Whoever"); err == nil {
		t.Error("expected error for unrecognized token")
	}
}

func TestSteam64ToSteam2_RoundTrip(t *testing.T) {
	steam64 := strconv.FormatInt(steam64Base+2*111, 10)
	got, err := Steam64ToSteam2(steam64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "STEAM_0:0:111" {
		t.Errorf("got %q, want STEAM_0:0:111", got)
	}
}

func TestCanonicalize_BotCaseInsensitive(t *testing.T) {
	id, isBot, err := Canonicalize("bot:Joe", "Joe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isBot {
		t.Error("lowercase bot token should be treated as a bot")
	}
	if id != "BOT_Joe" {
		t.Errorf("id = %q, want BOT_Joe", id)
	}
}

func TestCanonicalize_EmptyToken(t *testing.T) {
	if _, _, err := Canonicalize("   ", "Someone"); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestCanonicalize_RejectsOutOfRangeUniverse(t *testing.T) {
	if _, _, err := Canonicalize("STEAM_6:0:111", "Whoever"); err == nil {
		t.Error("expected error for universe outside 0..5")
	}
}
