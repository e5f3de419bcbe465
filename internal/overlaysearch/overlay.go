package overlaysearch

import (
	"math"
	"time"

	"github.com/signalsfoundry/sitecover/model"
)

// ProviderOverlay is one entry of the provider's entities_list.
type ProviderOverlay struct {
	Date        string      `json:"date"`
	ExclusiveID ExclusiveID `json:"exclusive_id"`
	Geo         struct {
		WKT string `json:"wkt"`
	} `json:"geo"`
	Link       string     `json:"Link"`
	Properties Properties `json:"properties_List"`
}

type ExclusiveID struct {
	DataStoreName string `json:"data_store_name"`
	EntityID      string `json:"entity_id"`
	LayerID       string `json:"layer_id"`
}

type Properties struct {
	ImagingTechnique string   `json:"ImagingTechnique"`
	Resolution       *float64 `json:"Resolution"`
	Sensor           string   `json:"Sensor"`
	Source           string   `json:"Source"`
	URL              string   `json:"Url"`
}

type searchResponse struct {
	Entities []ProviderOverlay `json:"entities_list"`
}

// ToModel maps a provider record onto model.Overlay. A missing resolution
// becomes +Inf so the overlay ranks last.
func (o ProviderOverlay) ToModel() model.Overlay {
	res := math.Inf(1)
	if o.Properties.Resolution != nil {
		res = *o.Properties.Resolution
	}
	link := o.Link
	if link == "" {
		link = o.Properties.URL
	}
	date, _ := time.Parse(time.RFC3339Nano, o.Date)
	return model.Overlay{
		ID:               o.ExclusiveID.EntityID,
		Footprint:        o.Geo.WKT,
		Resolution:       res,
		Date:             date,
		Sensor:           o.Properties.Sensor,
		Source:           o.Properties.Source,
		ImagingTechnique: o.Properties.ImagingTechnique,
		Link:             link,
	}
}
