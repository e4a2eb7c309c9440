package vm

// Hardfork names a point on the EVM feature-progression timeline. The zero
// value is Frontier.
type Hardfork int

const (
	Frontier Hardfork = iota
	Homestead
	TangerineWhistle
	SpuriousDragon
	Byzantium
	Constantinople
	Istanbul
	Berlin
	London
	Merge
	Shanghai
	Cancun
	Prague
)

var hardforkNames = map[Hardfork]string{
	Frontier:         "Frontier",
	Homestead:        "Homestead",
	TangerineWhistle: "TangerineWhistle",
	SpuriousDragon:   "SpuriousDragon",
	Byzantium:        "Byzantium",
	Constantinople:   "Constantinople",
	Istanbul:         "Istanbul",
	Berlin:           "Berlin",
	London:           "London",
	Merge:            "Merge",
	Shanghai:         "Shanghai",
	Cancun:           "Cancun",
	Prague:           "Prague",
}

func (h Hardfork) String() string {
	if name, ok := hardforkNames[h]; ok {
		return name
	}
	return "Unknown"
}

// Rules expands h into the monotonic ForkRules flag set every gas/opcode
// gate in core/vm consults. Each hardfork inherits every flag its
// predecessors set, matching the feature-progression table.
func (h Hardfork) Rules() ForkRules {
	var r ForkRules
	if h >= Homestead {
		r.IsHomestead = true
	}
	if h >= TangerineWhistle {
		r.IsTangerineWhistle = true
	}
	if h >= SpuriousDragon {
		r.IsSpuriousDragon = true
		r.EIP158 = true
	}
	if h >= Byzantium {
		r.IsByzantium = true
	}
	if h >= Constantinople {
		r.IsConstantinople = true
	}
	if h >= Istanbul {
		r.IsIstanbul = true
	}
	if h >= Berlin {
		r.IsBerlin = true
		r.EIP2929 = true
	}
	if h >= London {
		r.IsLondon = true
		r.EIP3529 = true
	}
	if h >= Merge {
		r.IsMerge = true
	}
	if h >= Shanghai {
		r.IsShanghai = true
	}
	if h >= Cancun {
		r.IsCancun = true
	}
	if h >= Prague {
		r.IsPrague = true
	}
	return r
}

// HardforkByName resolves one of the canonical hardfork names (case
// sensitive, matching String()) to its Hardfork value.
func HardforkByName(name string) (Hardfork, bool) {
	for hf, n := range hardforkNames {
		if n == name {
			return hf, true
		}
	}
	return 0, false
}
