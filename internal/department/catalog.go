// Package department holds the static catalog of metropolitan French
// departments and the ordering used to display them.
package department

import (
	"slices"
	"strconv"
	"strings"
)

// Department is one catalog entry.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var names = map[string]string{
	"01": "Ain", "02": "Aisne", "03": "Allier", "04": "Alpes-de-Haute-Provence",
	"05": "Hautes-Alpes", "06": "Alpes-Maritimes", "07": "Ardèche", "08": "Ardennes",
	"09": "Ariège", "10": "Aube", "11": "Aude", "12": "Aveyron",
	"13": "Bouches-du-Rhône", "14": "Calvados", "15": "Cantal", "16": "Charente",
	"17": "Charente-Maritime", "18": "Cher", "19": "Corrèze", "21": "Côte-d'Or",
	"22": "Côtes-d'Armor", "23": "Creuse", "24": "Dordogne", "25": "Doubs",
	"26": "Drôme", "27": "Eure", "28": "Eure-et-Loir", "29": "Finistère",
	"2A": "Corse-du-Sud", "2B": "Haute-Corse", "30": "Gard", "31": "Haute-Garonne",
	"32": "Gers", "33": "Gironde", "34": "Hérault", "35": "Ille-et-Vilaine",
	"36": "Indre", "37": "Indre-et-Loire", "38": "Isère", "39": "Jura",
	"40": "Landes", "41": "Loir-et-Cher", "42": "Loire", "43": "Haute-Loire",
	"44": "Loire-Atlantique", "45": "Loiret", "46": "Lot", "47": "Lot-et-Garonne",
	"48": "Lozère", "49": "Maine-et-Loire", "50": "Manche", "51": "Marne",
	"52": "Haute-Marne", "53": "Mayenne", "54": "Meurthe-et-Moselle", "55": "Meuse",
	"56": "Morbihan", "57": "Moselle", "58": "Nièvre", "59": "Nord",
	"60": "Oise", "61": "Orne", "62": "Pas-de-Calais", "63": "Puy-de-Dôme",
	"64": "Pyrénées-Atlantiques", "65": "Hautes-Pyrénées", "66": "Pyrénées-Orientales",
	"67": "Bas-Rhin", "68": "Haut-Rhin", "69": "Rhône", "70": "Haute-Saône",
	"71": "Saône-et-Loire", "72": "Sarthe", "73": "Savoie", "74": "Haute-Savoie",
	"75": "Paris", "76": "Seine-Maritime", "77": "Seine-et-Marne", "78": "Yvelines",
	"79": "Deux-Sèvres", "80": "Somme", "81": "Tarn", "82": "Tarn-et-Garonne",
	"83": "Var", "84": "Vaucluse", "85": "Vendée", "86": "Vienne",
	"87": "Haute-Vienne", "88": "Vosges", "89": "Yonne", "90": "Territoire de Belfort",
	"91": "Essonne", "92": "Hauts-de-Seine", "93": "Seine-Saint-Denis", "94": "Val-de-Marne",
	"95": "Val-d'Oise",
}

// IleDeFrance lists the codes added by the predefined-selection shortcut.
var IleDeFrance = []string{"75", "77", "78", "91", "92", "93", "94", "95"}

// Lookup returns the catalog entry for code.
func Lookup(code string) (Department, bool) {
	name, ok := names[code]
	if !ok {
		return Department{}, false
	}
	return Department{Code: code, Name: name}, true
}

// All returns every catalog entry in display order.
func All() []Department {
	out := make([]Department, 0, len(names))
	for code, name := range names {
		out = append(out, Department{Code: code, Name: name})
	}
	slices.SortFunc(out, func(a, b Department) int { return Compare(a.Code, b.Code) })
	return out
}

// Len reports the catalog size.
func Len() int {
	return len(names)
}

// Resolve maps codes to catalog entries, skipping unknown ones.
func Resolve(codes []string) []Department {
	out := make([]Department, 0, len(codes))
	for _, code := range codes {
		if d, ok := Lookup(strings.TrimSpace(code)); ok {
			out = append(out, d)
		}
	}
	return out
}

// Compare orders department codes: numeric codes ascending first, then the
// non-numeric ones ("2A", "2B") by string comparison.
func Compare(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortCodes sorts codes in place using Compare.
func SortCodes(codes []string) {
	slices.SortFunc(codes, Compare)
}
