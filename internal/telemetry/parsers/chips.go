package parsers

import "strings"

// socFamily maps a device-tree vendor prefix to its known SoC models.
type socFamily struct {
	vendor string
	label  string
	models []socModel
}

type socModel struct {
	match string
	label string
}

// socFamilies is checked in order; the first vendor present in the
// compatible string wins.
var socFamilies = []socFamily{
	{
		vendor: "rockchip",
		label:  "Rockchip",
		models: []socModel{
			{"rk3399", "Rockchip RK3399"},
			{"rk3568", "Rockchip RK3568"},
			{"rk3588", "Rockchip RK3588"},
		},
	},
	{
		vendor: "amlogic",
		label:  "Amlogic",
		models: []socModel{
			{"g12", "Amlogic G12"},
			{"s905", "Amlogic S905"},
			{"s922", "Amlogic S922"},
		},
	},
	{vendor: "allwinner", label: "Allwinner"},
	{vendor: "broadcom", label: "Broadcom"},
	{vendor: "qualcomm", label: "Qualcomm"},
	{vendor: "nvidia", label: "Nvidia Jetson"},
}

// implementers maps /proc/cpuinfo "CPU implementer" codes to vendor names.
var implementers = map[string]string{
	"0x41": "ARM",
	"0x42": "Broadcom",
	"0x51": "Qualcomm",
}

// ChipFromCompatible resolves a chip label from /proc/device-tree/compatible.
// The file is a NUL-separated list such as
// "rockchip,rk3588-evb1-v10\x00rockchip,rk3588".
func ChipFromCompatible(compatible string) (string, bool) {
	c := strings.ToLower(strings.ReplaceAll(compatible, "\x00", " "))
	c = strings.TrimSpace(c)
	if c == "" || c == "no compatible" {
		return "", false
	}

	for _, fam := range socFamilies {
		if !strings.Contains(c, fam.vendor) {
			continue
		}
		for _, m := range fam.models {
			if strings.Contains(c, m.match) {
				return m.label, true
			}
		}
		return fam.label, true
	}
	return "", false
}
