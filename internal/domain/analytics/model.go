package analytics

// SyncCounts summarises how referrals were mirrored to Salesforce.
type SyncCounts struct {
	Synced    int `json:"synced"`
	Unsynced  int `json:"unsynced"`
	Live      int `json:"live"`
	Simulated int `json:"simulated"`
	Failed    int `json:"failed"`
}

type Dashboard struct {
	Total       int            `json:"total"`
	ThisMonth   int            `json:"this_month"`
	ByStatus    map[string]int `json:"by_status"`
	ByUrgency   map[string]int `json:"by_urgency"`
	ByCondition map[string]int `json:"by_condition"`
	Sync        SyncCounts     `json:"sync"`
}

// TrendPoint is the number of referrals created in Month (YYYY-MM).
type TrendPoint struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type ForecastPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

type Forecast struct {
	Method      string          `json:"method"`
	Periods     int             `json:"periods"`
	Slope       float64         `json:"slope"`
	Intercept   float64         `json:"intercept"`
	History     []TrendPoint    `json:"history"`
	Predictions []ForecastPoint `json:"predictions"`
}
