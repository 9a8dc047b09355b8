package choropleth

// stateCodes maps the feature names of the Brazil GeoJSON to IBGE UF codes.
var stateCodes = map[string]int64{
	"Acre":                12,
	"Alagoas":             17,
	"Amapá":               16,
	"Amazonas":            13,
	"Bahia":               29,
	"Ceará":               23,
	"Distrito Federal":    53,
	"Espírito Santo":      32,
	"Goiás":               52,
	"Maranhão":            21,
	"Mato Grosso":         51,
	"Mato Grosso do Sul":  50,
	"Minas Gerais":        31,
	"Pará":                15,
	"Paraíba":             25,
	"Paraná":              41,
	"Pernambuco":          26,
	"Piauí":               22,
	"Rio de Janeiro":      33,
	"Rio Grande do Norte": 24,
	"Rio Grande do Sul":   43,
	"Rondônia":            11,
	"Roraima":             14,
	"Santa Catarina":      42,
	"São Paulo":           35,
	"Sergipe":             28,
	"Tocantins":           27,
}

// CodeByName resolves a map feature name to its UF code.
func CodeByName(name string) (int64, bool) {
	code, ok := stateCodes[name]
	return code, ok
}

// FeatureNames returns the feature name for every known UF code.
func FeatureNames() map[int64]string {
	out := make(map[int64]string, len(stateCodes))
	for name, code := range stateCodes {
		out[code] = name
	}
	return out
}
