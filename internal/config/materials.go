package config

import (
	"sort"

	"github.com/san-kum/fgmsim/internal/dynamo"
)

// DefaultGamma is the Tait exponent used when a material leaves it unset.
const DefaultGamma = 7

// Catalog holds reference materials in simulation units: density in g/cm³
// and stiffness scaled so every entry is stable at the default h and dt.
var Catalog = map[string]dynamo.Material{
	"steel":    {ID: "steel", RestDensity: 7.8, Stiffness: 2000, Gamma: 7},
	"copper":   {ID: "copper", RestDensity: 8.9, Stiffness: 1800, Gamma: 7},
	"titanium": {ID: "titanium", RestDensity: 4.5, Stiffness: 1200, Gamma: 7},
	"aluminum": {ID: "aluminum", RestDensity: 2.7, Stiffness: 800, Gamma: 7},
	"ceramic":  {ID: "ceramic", RestDensity: 3.9, Stiffness: 1500, Gamma: 7},
	"polymer":  {ID: "polymer", RestDensity: 1.2, Stiffness: 100, Gamma: 7, Viscosity: 0.2},
}

func LookupMaterial(id string) (dynamo.Material, bool) {
	m, ok := Catalog[id]
	return m, ok
}

func ListMaterials() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
