package domain

import "strings"

// Cities is the catalogue offered by the quick locator.
var Cities = []City{
	{Key: "marrakech", Name: "Marrakech", Center: GeoPoint{Lat: 31.63, Lon: -7.98}},
	{Key: "fes", Name: "Fes", Center: GeoPoint{Lat: 34.0331, Lon: -5.0003}},
	{Key: "casablanca", Name: "Casablanca", Center: GeoPoint{Lat: 33.5731, Lon: -7.5898}},
	{Key: "rabat", Name: "Rabat", Center: GeoPoint{Lat: 34.0209, Lon: -6.8416}},
	{Key: "tangier", Name: "Tangier", Center: GeoPoint{Lat: 35.7595, Lon: -5.834}},
	{Key: "chefchaouen", Name: "Chefchaouen", Center: GeoPoint{Lat: 35.1688, Lon: -5.2684}},
	{Key: "essaouira", Name: "Essaouira", Center: GeoPoint{Lat: 31.5085, Lon: -9.7595}},
	{Key: "agadir", Name: "Agadir", Center: GeoPoint{Lat: 30.4278, Lon: -9.5981}},
	{Key: "merzouga", Name: "Merzouga", Center: GeoPoint{Lat: 31.0802, Lon: -4.0133}},
	{Key: "ouarzazate", Name: "Ouarzazate", Center: GeoPoint{Lat: 30.9335, Lon: -6.937}},
}

// LookupCity finds a city by key or case-insensitive name.
func LookupCity(keyOrName string) (City, bool) {
	for _, c := range Cities {
		if c.Key == keyOrName || strings.EqualFold(c.Name, keyOrName) {
			return c, true
		}
	}
	return City{}, false
}
