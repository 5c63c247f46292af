package catalog

import "github.com/graphlite-db/graphlite/internal/storage"

// Bootstrap constructs a Facade with every standard provider registered
// and cascade relationships wired: dropping a Schema cascades to its
// Graphs and GraphTypes; dropping a Graph cascades to nothing further
// (§4.5.5 DDL invariants).
func Bootstrap(engine storage.Engine) (*Facade, error) {
	f := NewFacade(engine)

	schemaP := NewMapProvider(EntitySchema)
	graphP := NewMapProvider(EntityGraph)
	graphTypeP := NewMapProvider(EntityGraphType)
	roleP := NewMapProvider(EntityRole)
	aceP := NewMapProvider(EntityAce)
	storeP := NewMapProvider(EntityStore)
	procedureP := NewMapProvider(EntityProcedure)
	metricP := NewMapProvider(EntityMetric)
	collectionP := NewMapProvider(EntityCollection)
	userP := NewUserProvider()

	schemaP.SetCascadeChild(graphP)
	schemaP.SetCascadeChild(graphTypeP)

	for entityType, p := range map[EntityType]Provider{
		EntitySchema:     schemaP,
		EntityGraph:      graphP,
		EntityGraphType:  graphTypeP,
		EntityRole:       roleP,
		EntityAce:        aceP,
		EntityStore:      storeP,
		EntityProcedure:  procedureP,
		EntityMetric:     metricP,
		EntityCollection: collectionP,
		EntityUser:       userP,
	} {
		if err := f.RegisterProvider(entityType, p); err != nil {
			return nil, err
		}
	}
	return f, nil
}
