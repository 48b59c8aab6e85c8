package core

import "custodycore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in invariants.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSerialUniquenessRule())
	engine.Register(NewCustodyConsistencyRule())
	return engine
}
