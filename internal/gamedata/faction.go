package gamedata

// DefaultStanding стартовое отношение фракции from к фракции to
func DefaultStanding(from, to Faction) FactionStanding {
	if from == to {
		return StandingExalted
	}
	if from == FactionNeutral || to == FactionNeutral {
		return StandingNeutral
	}

	switch from {
	case FactionVerdantCircles:
		switch to {
		case FactionAscendantLeague:
			return StandingHostile
		case FactionTotemClansPathbound:
			return StandingFriendly
		case FactionDominionWarhost, FactionVoidCompact:
			return StandingUnfriendly
		}
	case FactionAscendantLeague:
		switch to {
		case FactionVerdantCircles:
			return StandingHostile
		case FactionUnitedKingdoms:
			return StandingFriendly
		}
	case FactionUnitedKingdoms:
		if to == FactionDominionWarhost {
			return StandingUnfriendly
		}
	case FactionTotemClansWildborn:
		if to == FactionTotemClansPathbound {
			return StandingHostile
		}
	case FactionTotemClansPathbound:
		if to == FactionTotemClansWildborn {
			return StandingHostile
		}
	case FactionDominionWarhost:
		switch to {
		case FactionVerdantCircles, FactionAscendantLeague:
			return StandingUnfriendly
		case FactionVoidCompact:
			return StandingNeutral
		default:
			return StandingHostile
		}
	}
	return StandingNeutral
}

// IsRaceAvailableForFaction проверяет, может ли раса вступить во фракцию
func IsRaceAvailableForFaction(r Race, f Faction) bool {
	switch f {
	case FactionVerdantCircles:
		return r == RaceSylvaen
	case FactionAscendantLeague:
		return r == RaceHighElf
	case FactionUnitedKingdoms:
		return r == RaceHuman
	case FactionTotemClansWildborn, FactionTotemClansPathbound:
		return r == RaceTherakai
	case FactionDominionWarhost:
		return r == RaceGronnak
	case FactionVoidCompact, FactionNeutral:
		return r.Valid()
	default:
		return false
	}
}

// StarterZone возвращает стартовую зону фракции и точку появления в ней
func StarterZone(f Faction) (string, [3]float32) {
	id, ok := starterZones[f]
	if !ok {
		id = ZoneThornveilEnclave
	}
	z := Zones[id]
	return id, [3]float32{z.SafeSpawn[0], z.SafeSpawn[1], z.SafeSpawn[2]}
}

var starterZones = map[Faction]string{
	FactionVerdantCircles:      ZoneThornveilEnclave,
	FactionAscendantLeague:     ZoneTemporalSteppes,
	FactionUnitedKingdoms:      ZoneBorderkeep,
	FactionTotemClansWildborn:  ZoneUntamedReaches,
	FactionTotemClansPathbound: ZoneCarvedValleys,
	FactionDominionWarhost:     ZoneScarredHighlands,
	FactionVoidCompact:         ZoneBlackwakeHaven,
}
