package validate

import "testing"

func TestTribeName(t *testing.T) {
	valid := []string{"Weekend Hikers", "book-club", "Team_42", "O'Brien's crew"}
	for _, v := range valid {
		if err := TribeName(v); err != nil {
			t.Errorf("TribeName(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", " leading space", "emoji \U0001F600", string(make([]byte, 81))}
	for _, v := range invalid {
		if err := TribeName(v); err == nil {
			t.Errorf("TribeName(%q) expected error", v)
		}
	}
}

func TestID(t *testing.T) {
	if err := ID("tribeId", "3e2f1a9c-0b0e-4d7a-9a11-aaaaaaaaaaaa"); err != nil {
		t.Fatalf("uuid should validate: %v", err)
	}
	if err := ID("tribeId", ""); err == nil {
		t.Fatal("empty id should fail")
	}
	if err := ID("tribeId", "has space"); err == nil {
		t.Fatal("id with space should fail")
	}
}

func TestMemberCount(t *testing.T) {
	if err := MemberCount(4, 8); err != nil {
		t.Fatalf("4..8 should validate: %v", err)
	}
	if err := MemberCount(1, 8); err == nil {
		t.Fatal("min below 2 should fail")
	}
	if err := MemberCount(6, 4); err == nil {
		t.Fatal("max below min should fail")
	}
	if err := MemberCount(4, 20); err == nil {
		t.Fatal("max above 12 should fail")
	}
}
