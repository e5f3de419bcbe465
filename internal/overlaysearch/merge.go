package overlaysearch

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// MergeFootprints combines polygon WKTs into one MULTIPOLYGON so a whole
// group can be searched with a single geo_intersect clause. Blank, invalid
// and non-polygon inputs are skipped; nothing usable yields "".
func MergeFootprints(wkts []string) string {
	var mp orb.MultiPolygon
	for _, s := range wkts {
		if strings.TrimSpace(s) == "" {
			continue
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			continue
		}
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		}
	}
	if len(mp) == 0 {
		return ""
	}
	return wkt.MarshalString(mp)
}
