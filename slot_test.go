package glide

import "testing"

func TestSlotOf(t *testing.T) {
	cases := []struct {
		key  string
		slot int
	}{
		{"foo", 12182},
		{"{user1000}.following", 5474},
		{"{user1000}.followers", 5474},
	}

	for _, c := range cases {
		if got := SlotOf(c.key); got != c.slot {
			t.Errorf("SlotOf(%q) = %d, want %d", c.key, got, c.slot)
		}
	}
}

func TestHashTag(t *testing.T) {
	cases := []struct {
		key string
		tag string
	}{
		{"{user1000}.following", "user1000"},
		{"foo", "foo"},
		{"{}bar", "{}bar"},
		{"foo{}bar", "foo{}bar"},
		{"foo{bar}baz{qux}", "bar"},
	}

	for _, c := range cases {
		if got := HashTag(c.key); got != c.tag {
			t.Errorf("HashTag(%q) = %q, want %q", c.key, got, c.tag)
		}
	}
}

func TestSlotOfSameTagCollocates(t *testing.T) {
	a := SlotOf("{user1000}.following")
	b := SlotOf("{user1000}.followers")
	if a != b {
		t.Errorf("keys sharing a hash tag must land on the same slot: %d != %d", a, b)
	}
}
