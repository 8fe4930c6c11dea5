package google

import "strings"

// AddressComponent is one typed part of a geocoding result's address.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// addressOrder lists the component types concatenated into a formatted
// address, largest unit first. Country and postal code are never included.
var addressOrder = []string{
	"administrative_area_level_1", // prefecture
	"locality",                    // city
	"sublocality_level_1",         // ward
	"sublocality_level_2",         // town
	"sublocality_level_3",         // block (丁目)
	"sublocality_level_4",
	"street_number",
	"premise",
	"subpremise",
}

// FormatAddress joins the long names of the components in addressOrder
// without separators, the way Japanese addresses are written.
func FormatAddress(components []AddressComponent) string {
	var b strings.Builder
	for _, typ := range addressOrder {
		if name := findComponent(components, typ); name != "" {
			b.WriteString(name)
		}
	}
	return b.String()
}

func findComponent(components []AddressComponent, typ string) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == typ {
				return c.LongName
			}
		}
	}
	return ""
}
