package fallback

// californiaPlaces lists cities, counties and large districts recognized
// without capitalization cues. Display form is what reaches storage.
var californiaPlaces = []string{
	"Alameda", "Anaheim", "Antioch", "Bakersfield", "Berkeley", "Burbank",
	"Camarillo", "Carlsbad", "Chico", "Chula Vista", "Clovis", "Compton",
	"Concord", "Corona", "Costa Mesa", "Cupertino", "Daly City", "Davis",
	"Delano", "Downey", "Dublin", "El Cajon", "El Centro", "El Monte",
	"Elk Grove", "Escondido", "Eureka", "Fontana", "Fremont", "Fresno",
	"Fullerton", "Garden Grove", "Gilroy", "Glendale", "Hanford", "Hayward",
	"Hemet", "Huntington Beach", "Indio", "Inglewood", "Irvine", "Lancaster",
	"Livermore", "Lodi", "Lompoc", "Long Beach", "Los Angeles", "Madera",
	"Menlo Park", "Merced", "Milpitas", "Modesto", "Monterey", "Moreno Valley",
	"Morgan Hill", "Mountain View", "Murrieta", "Napa", "Newark", "Oakland",
	"Oceanside", "Ontario", "Oxnard", "Palm Springs", "Palmdale", "Palo Alto",
	"Pasadena", "Pittsburg", "Pleasanton", "Pomona", "Porterville",
	"Rancho Cucamonga", "Redding", "Redwood City", "Richmond", "Riverside",
	"Roseville", "Sacramento", "Salinas", "San Bernardino", "San Bruno",
	"San Diego", "San Francisco", "San Jose", "San Leandro",
	"San Luis Obispo", "San Marcos", "San Mateo", "San Rafael", "San Ramon",
	"Santa Ana", "Santa Barbara", "Santa Clara", "Santa Clarita", "Santa Cruz",
	"Santa Maria", "Santa Monica", "Santa Rosa", "Seaside", "Simi Valley",
	"South San Francisco", "Stockton", "Sunnyvale", "Temecula",
	"Thousand Oaks", "Torrance", "Tracy", "Turlock", "Union City", "Vallejo",
	"Ventura", "Visalia", "Walnut Creek", "Watsonville", "West Covina",
	"West Sacramento", "Yuba City",
	"Orange County", "Kern County", "Tulare County", "Imperial County",
	"Los Angeles Unified", "San Diego Unified", "Fresno Unified",
	"Long Beach Unified", "Elk Grove Unified", "Oakland Unified",
	"San Francisco Unified", "Sacramento City Unified", "Santa Ana Unified",
	"San Juan Unified", "Capistrano Unified", "Corona-Norco Unified",
	"Sweetwater Union High",
}

// placeAliases maps abbreviations to a display name. They are matched
// case-sensitively so "la" in running text is left alone.
var placeAliases = map[string]string{
	"LA":    "Los Angeles",
	"SF":    "San Francisco",
	"LAUSD": "Los Angeles Unified",
	"SFUSD": "San Francisco Unified",
	"SDUSD": "San Diego Unified",
	"OUSD":  "Oakland Unified",
}

// notPlaces are capitalized words that follow "in" without naming a place.
var notPlaces = map[string]bool{
	"the":     true,
	"schools": true,
	"school":  true,
	"our":     true,
	"my":      true,
	"english": true,
	"spanish": true,
}
