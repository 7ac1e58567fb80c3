package model

// City groups the cinemas of one town.  Cities are managed by admins
// (or the importer) and only read by the hint engine.
//
// Fields:
//  ID      – primary key identifier.
//  Name    – unique city name.
//  Cinemas – cinemas located in the city; only populated by list queries
//            that join the cinemas table.
type City struct {
	ID      uint64   // cities.id
	Name    string   // cities.name
	Cinemas []Cinema // cinemas.city_id = cities.id
}

// Cinema represents a movie theatre that runs sneak previews.  Hints
// are always reported against a cinema.  This struct corresponds to a
// row in the `cinemas` table.
//
// Fields:
//  ID     – primary key identifier.
//  CityID – city the cinema belongs to.
//  Name   – cinema name, unique per city.
type Cinema struct {
	ID     uint64 // cinemas.id
	CityID uint64 // cinemas.city_id
	Name   string // cinemas.name
}
