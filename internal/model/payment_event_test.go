package model

import "testing"

func TestEventKindCollection(t *testing.T) {
	if got := KindConsult.Collection(); got != "fortunes" {
		t.Fatalf("consult collection mismatch: %s", got)
	}
	if got := KindMinting.Collection(); got != "nfts" {
		t.Fatalf("minting collection mismatch: %s", got)
	}
}

func TestEventKindEventName(t *testing.T) {
	if got := KindConsult.EventName(); got != "ConsultPaid" {
		t.Fatalf("consult event name mismatch: %s", got)
	}
	if got := KindMinting.EventName(); got != "MintingPaid" {
		t.Fatalf("minting event name mismatch: %s", got)
	}
}
