// Package holidays models public holiday records and filters them against
// the configured type, locale, bank-holiday and weekend rules.
package holidays

import (
	"fmt"
	"strings"
	"time"
)

// Holiday is one public holiday record as returned by the holiday provider,
// with its locale list and UTC exclusion interval derived on construction.
type Holiday struct {
	Name        string
	LocalName   string
	Language    string
	Description string
	Country     string
	Location    string
	Locations   []string
	Type        string
	Date        string
	LocalStart  time.Time
	UtcStart    time.Time
	UtcEnd      time.Time
}

// New builds a Holiday from raw provider fields. The location string either
// carries a country prefix ("Australia - New South Wales, Victoria") or a
// bare comma-delimited list; both forms yield the sub-location list. The
// exclusion interval is local midnight to the next local midnight, expressed
// in UTC.
func New(name, localName, language, description, country, location, holidayType, date string, loc *time.Location) (Holiday, error) {
	if loc == nil {
		loc = time.Local
	}

	localStart, err := time.ParseInLocation("1/2/2006", date, loc)
	if err != nil {
		return Holiday{}, fmt.Errorf("failed to parse holiday date %q: %v", date, err)
	}

	var locations []string
	list := location
	if idx := strings.Index(location, " - "); idx >= 0 {
		list = location[idx+3:]
	}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			locations = append(locations, entry)
		}
	}

	return Holiday{
		Name:        name,
		LocalName:   localName,
		Language:    language,
		Description: description,
		Country:     country,
		Location:    location,
		Locations:   locations,
		Type:        holidayType,
		Date:        date,
		LocalStart:  localStart,
		UtcStart:    localStart.UTC(),
		UtcEnd:      localStart.AddDate(0, 0, 1).UTC(),
	}, nil
}

// Contains reports whether the instant falls inside the holiday's UTC
// exclusion interval.
func (h Holiday) Contains(instant time.Time) bool {
	return !instant.Before(h.UtcStart) && instant.Before(h.UtcEnd)
}

// Validate filters raw holiday records. A record passes when its type
// matches one of typeMatch (empty list matches every type), one of its
// sub-locations equals one of localeMatch (empty list matches every locale),
// and it is not an excluded bank holiday or weekend holiday.
func Validate(list []Holiday, typeMatch, localeMatch []string, includeBank, includeWeekends bool) []Holiday {
	result := make([]Holiday, 0, len(list))

	for _, holiday := range list {
		hasType := false
		hasRegion := false

		for _, match := range typeMatch {
			if strings.Contains(strings.ToLower(holiday.Type), strings.ToLower(match)) {
				hasType = true
				break
			}
		}

		for _, match := range localeMatch {
			for _, location := range holiday.Locations {
				if strings.EqualFold(location, match) {
					hasRegion = true
					break
				}
			}
			if hasRegion {
				break
			}
		}

		isBank := !includeBank &&
			strings.Contains(strings.ToLower(holiday.Name), strings.ToLower("Bank Holiday"))
		isWeekend := !includeWeekends &&
			(holiday.LocalStart.Weekday() == time.Sunday || holiday.LocalStart.Weekday() == time.Saturday)

		if isBank || isWeekend {
			continue
		}
		if len(typeMatch) > 0 && !hasType {
			continue
		}
		if len(localeMatch) > 0 && !hasRegion {
			continue
		}

		result = append(result, holiday)
	}

	return result
}

// AnyContains reports whether any holiday's exclusion interval covers the
// instant.
func AnyContains(list []Holiday, instant time.Time) bool {
	for _, holiday := range list {
		if holiday.Contains(instant) {
			return true
		}
	}
	return false
}
