// Package vektor is the public embeddable surface of the engine. It
// re-exports the database API, filter constructors, and configuration so
// host applications depend on one import path:
//
//	cfg := vektor.DefaultConfig(768)
//	cfg.WAL.Path = "data/vektor.wal"
//	db, err := vektor.Open(cfg)
//	...
//	ord, err := db.Add(embedding, []vektor.Pair{{Key: "lang", Value: "en"}})
//	hits, err := db.SearchFiltered(query, 10, vektor.Eq("lang", "en"))
package vektor
