package addressing

type searchAddress struct {
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Unit         string `json:"unit"`
	Suburb       string `json:"suburb"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

// searchResult mirrors the relevant parts of a Nominatim-style search payload.
type searchResult struct {
	DisplayName string        `json:"display_name"`
	Address     searchAddress `json:"address"`
}
