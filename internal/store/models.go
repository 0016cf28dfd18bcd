package store

// JSON tags match the layout of the data files written by earlier
// deployments, so an existing data directory loads unchanged and API
// responses keep their field names.

// User represents a community member account.
type User struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Credits        int      `json:"credits"`
	Tokens         int      `json:"tokens"`
	LastTokenReset string   `json:"lastTokenReset"`
	Friends        []string `json:"friends"`
	CreatedAt      string   `json:"createdAt,omitempty"`
}

// UserUpdate carries optional field changes; nil means leave unchanged.
type UserUpdate struct {
	Credits        *int
	Tokens         *int
	LastTokenReset *string
	Friends        *[]string
}

// Product is a marketplace listing.
type Product struct {
	ID          int64   `json:"id"`
	SellerID    int64   `json:"seller_id"`
	SellerName  string  `json:"seller_name"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Phone       string  `json:"phone"`
	Views       int     `json:"views"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// DiseaseReport is a submitted outbreak report.
type DiseaseReport struct {
	ID            int64  `json:"id"`
	DiseaseName   string `json:"diseaseName"`
	CropType      string `json:"cropType"`
	Severity      string `json:"severity"`
	Description   string `json:"description,omitempty"`
	ReporterPhone string `json:"reporterPhone,omitempty"`
	Location      string `json:"location"`
	ReportedAt    string `json:"reportedAt"`
	Status        string `json:"status"`
}

// AlertRegistration is a farmer's subscription to outbreak alerts,
// keyed by phone number.
type AlertRegistration struct {
	ID           int64  `json:"id"`
	FarmerName   string `json:"farmerName"`
	PhoneNumber  string `json:"phoneNumber"`
	CropTypes    string `json:"cropTypes"`
	AlertRadius  int    `json:"alertRadius"`
	Location     string `json:"location"`
	RegisteredAt string `json:"registeredAt"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	IsActive     bool   `json:"isActive"`
}

// DetectionRecord is one classifier run kept in a user's history.
type DetectionRecord struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"userId"`
	Image      string  `json:"image"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}
