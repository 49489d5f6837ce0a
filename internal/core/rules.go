package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewSeatCapacityRule())
	engine.Register(NewPurchaseOwnerRule())
	engine.Register(NewThemeVisibilityRule())
	engine.Register(NewVersionMonotonicRule())
	return engine
}
