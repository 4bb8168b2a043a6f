package ledger

import "testing"

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "completed"} {
		status, err := ParseStatus(valid)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", valid, err)
		}
		if string(status) != valid {
			t.Fatalf("ParseStatus(%q) = %q", valid, status)
		}
	}
	if _, err := ParseStatus("failed"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Fatal("expected error for empty status")
	}
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"transfer", "deposit", "withdraw"} {
		kind, err := ParseKind(valid)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", valid, err)
		}
		if string(kind) != valid {
			t.Fatalf("ParseKind(%q) = %q", valid, kind)
		}
	}
	if _, err := ParseKind("refund"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
