package netdiag

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is the GeoIP annotation for a target address.
type Location struct {
	Country string
	City    string
}

func (l *Location) String() string {
	if l.City != "" && l.Country != "" {
		return l.City + ", " + l.Country
	}
	if l.Country != "" {
		return l.Country
	}
	return l.City
}

type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Lookup resolves addr against a local MaxMind database file.
func Lookup(dbPath string, addr net.IP) (*Location, error) {
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	defer db.Close()

	var rec geoRecord
	if err := db.Lookup(addr, &rec); err != nil {
		return nil, fmt.Errorf("geoip lookup for %s: %w", addr, err)
	}

	loc := &Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
	if loc.Country == "" && loc.City == "" {
		return nil, fmt.Errorf("no geoip record for %s", addr)
	}
	return loc, nil
}
