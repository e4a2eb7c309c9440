package vm

import "testing"

func TestHardforkRulesAreCumulative(t *testing.T) {
	rules := Prague.Rules()
	if !rules.IsHomestead || !rules.IsByzantium || !rules.IsBerlin || !rules.IsLondon || !rules.IsShanghai || !rules.IsCancun || !rules.IsPrague {
		t.Fatalf("Prague.Rules() should set every earlier hardfork's flags too: %+v", rules)
	}
}

func TestHardforkRulesFrontierHasNoLaterFlags(t *testing.T) {
	rules := Frontier.Rules()
	if rules.IsHomestead || rules.IsBerlin || rules.IsLondon {
		t.Fatalf("Frontier.Rules() should not set any later hardfork's flags: %+v", rules)
	}
}

func TestHardforkRulesBerlinSetsEIP2929ButNotEIP3529(t *testing.T) {
	rules := Berlin.Rules()
	if !rules.EIP2929 {
		t.Fatalf("Berlin should set EIP2929")
	}
	if rules.EIP3529 {
		t.Fatalf("Berlin should not yet set EIP3529 (London+)")
	}
}

func TestHardforkByName(t *testing.T) {
	hf, ok := HardforkByName("London")
	if !ok || hf != London {
		t.Fatalf("HardforkByName(London) = (%v, %v), want (London, true)", hf, ok)
	}
	if _, ok := HardforkByName("NotAFork"); ok {
		t.Fatalf("HardforkByName(unknown) should report ok=false")
	}
}

func TestHardforkString(t *testing.T) {
	if Shanghai.String() != "Shanghai" {
		t.Fatalf("Shanghai.String() = %q, want %q", Shanghai.String(), "Shanghai")
	}
}
