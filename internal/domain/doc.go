// Package domain models the ADS-B aircraft registry feed and the partitioned
// lookup database built from it.
//
// # Data Source
//
// The feed is a gzip-compressed newline-delimited JSON file published by
// ADS-B Exchange ("basic-ac-db"). Each line is one aircraft:
//
//	{"icao":"A1B2C3","reg":"N123","icaotype":"C172","year":"1999",
//	 "manufacturer":"Cessna","model":"172","ownop":"Jane Doe",
//	 "short_type":"L1P","mil":false}
//
// Only icao is interpreted. The other fields are passed through untouched,
// so a year published as a string stays a string and mil stays a boolean.
//
// # Cancelled Registrations
//
// The registry keeps deregistered airframes and marks them with the operator
// sentinel "CANCELLED/NOT ASSIGNED". Those records never reach the output.
//
// # Partitioning
//
// Output is sharded by the first two characters of icao, case as supplied:
//
//	A1B2C3 -> A1.json
//	a1ffff -> a1.json
//
// Each partition file maps full icao to a compact record with short keys:
//
//	i=icao r=reg it=icaotype y=year m=manufacturer mo=model
//	o=ownop st=short_type ml=mil
//
// Duplicate icao values in one feed resolve last-write-wins.
package domain
