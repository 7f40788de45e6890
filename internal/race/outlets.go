package race

// Logos of the canonical outlets. Pass-through codes have none and are shown
// as text.
var outletLogos = map[Class]map[string]string{
	ClassTV: {
		"FOX":   "https://upload.wikimedia.org/wikipedia/commons/thumb/e/ee/Fox_Sports_wordmark_logo.svg/250px-Fox_Sports_wordmark_logo.svg.png",
		"FS1":   "https://upload.wikimedia.org/wikipedia/commons/thumb/3/37/2015_Fox_Sports_1_logo.svg/220px-2015_Fox_Sports_1_logo.svg.png",
		"NBC":   "https://upload.wikimedia.org/wikipedia/commons/thumb/7/7a/NBC_logo_2022_%28vertical%29.svg/250px-NBC_logo_2022_%28vertical%29.svg.png",
		"USA":   "https://upload.wikimedia.org/wikipedia/commons/thumb/8/84/USA_Network_2020.svg/250px-USA_Network_2020.svg.png",
		"CW":    "https://upload.wikimedia.org/wikipedia/commons/thumb/b/b1/The_CW_2024.svg/250px-The_CW_2024.svg.png",
		"PRIME": "https://upload.wikimedia.org/wikipedia/commons/thumb/9/9e/Amazon_Prime_logo_%282024%29.svg/250px-Amazon_Prime_logo_%282024%29.svg.png",
	},
	ClassRadio: {
		"MRN": "https://upload.wikimedia.org/wikipedia/commons/thumb/0/05/Motor_Racing_Network_logo.svg/250px-Motor_Racing_Network_logo.svg.png",
		"PRN": "https://upload.wikimedia.org/wikipedia/en/thumb/7/7b/Performance_Racing_Network.png/250px-Performance_Racing_Network.png",
	},
	ClassSatellite: {
		"SIRIUSXM": "https://upload.wikimedia.org/wikipedia/commons/thumb/e/ef/Sirius_XM_logo_2023.svg/250px-Sirius_XM_logo_2023.svg.png",
	},
}

// Outlet is a canonical code with its logo, if one is known.
type Outlet struct {
	Code string `json:"code"`
	Logo string `json:"logo,omitempty"`
}

// Known reports whether the outlet has a logo, i.e. is part of the closed
// vocabulary rather than a pass-through name.
func (o Outlet) Known() bool { return o.Logo != "" }

// Outlets attaches logos to a list of codes of one class.
func Outlets(class Class, codes []string) []Outlet {
	out := make([]Outlet, 0, len(codes))
	for _, c := range codes {
		out = append(out, Outlet{Code: c, Logo: outletLogos[class][c]})
	}
	return out
}
