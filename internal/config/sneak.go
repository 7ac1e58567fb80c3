package config

import "github.com/iliyamo/sneak-radar/internal/ranking"

// LoadSneakPolicy reads the ranking policy.  The defaults are the
// production ranking; the exponents are exposed for experiments.
func LoadSneakPolicy() ranking.Policy {
	def := ranking.DefaultPolicy()
	p := ranking.Policy{
		WindowDays:  envInt("SNEAK_WINDOW_DAYS", def.WindowDays),
		Limit:       envInt("SNEAK_TOP_N", def.Limit),
		CountExp:    envFloat("SNEAK_COUNT_EXP", def.CountExp),
		DaysTillExp: envFloat("SNEAK_DAYS_TILL_EXP", def.DaysTillExp),
		AgeExp:      envFloat("SNEAK_AGE_EXP", def.AgeExp),
	}
	if p.WindowDays < 1 {
		p.WindowDays = def.WindowDays
	}
	if p.Limit < 1 {
		p.Limit = def.Limit
	}
	return p
}
